// Package middleware provides HTTP middleware for the Prayu API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/identity"
)

var allowedHeaders = strings.Join([]string{"Content-Type", identity.SessionHeaderName}, ", ")

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			wildcard, explicit := matchOrigin(allowedOrigins, origin)
			if origin != "" && (wildcard || explicit) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Add("Vary", "Origin")
				// Credentials only for explicit origins; a wildcard-echoed origin with
				// credentials enables CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowed []string, origin string) (wildcard, explicit bool) {
	for _, o := range allowed {
		switch {
		case o == "*":
			wildcard = true
		case o == origin:
			explicit = true
		}
	}
	return wildcard, explicit
}
