package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/domain"
	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/observability"
)

// AttemptLister reads recorded upstream attempts.
type AttemptLister interface {
	ListAttempts(ctx context.Context, sessionKey string, limit int) ([]*domain.AttemptRecord, error)
}

// DiagnosticsHandler lists upstream attempts made on behalf of the caller.
type DiagnosticsHandler struct {
	repo AttemptLister
}

// NewDiagnosticsHandler creates a diagnostics handler.
func NewDiagnosticsHandler(repo AttemptLister) *DiagnosticsHandler {
	return &DiagnosticsHandler{repo: repo}
}

// RegisterRoutes registers diagnostics routes.
func (h *DiagnosticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/diagnostics/attempts", h.ListAttempts)
}

// ListAttempts returns the caller's newest attempts. Only the caller's own
// session is visible.
func (h *DiagnosticsHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	key := SessionKeyFromRequest(r)
	records, err := h.repo.ListAttempts(r.Context(), key, limit)
	if err != nil {
		observability.LoggerFromContext(observability.WithSessionKey(r.Context(), key)).
			Error("Failed to list attempts", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	if records == nil {
		records = []*domain.AttemptRecord{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"session_key": key,
		"attempts":    records,
	})
}
