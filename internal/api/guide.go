package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Gnanapravallika/Prayu-AI-Chatbot/internal/guide"
)

// GuideHandler serves the static prompting guide.
type GuideHandler struct {
	guide *guide.Guide
}

// NewGuideHandler creates a guide handler.
func NewGuideHandler(g *guide.Guide) *GuideHandler {
	return &GuideHandler{guide: g}
}

// RegisterRoutes registers guide routes.
func (h *GuideHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/guide", h.Get)
}

// Get returns the guide content.
func (h *GuideHandler) Get(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.guide)
}
