package middleware

import (
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
)

// RequestContext copies the chi request id into the observability context so
// LoggerFromContext tags every line with it. It must run after
// chiMiddleware.RequestID.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chiMiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
