package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// DefaultHealthCheckTimeout bounds the database ping.
const DefaultHealthCheckTimeout = 5 * time.Second

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo     Pinger
	timeout  time.Duration
	sessions func() int
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(repo Pinger, timeout time.Duration, sessions func() int) *HealthHandler {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &HealthHandler{repo: repo, timeout: timeout, sessions: sessions}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}
	if h.sessions != nil {
		status["sessions"] = h.sessions()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
