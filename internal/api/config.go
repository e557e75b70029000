package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ClientConfig is what the widget needs to know about the server.
type ClientConfig struct {
	AIEnabled bool   `json:"ai_enabled"`
	Model     string `json:"model"`
	Grounding bool   `json:"grounding"`
}

// ConfigHandler serves ClientConfig.
type ConfigHandler struct {
	cfg ClientConfig
}

// NewConfigHandler creates a config handler.
func NewConfigHandler(cfg ClientConfig) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// RegisterRoutes registers config routes.
func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/config", h.GetConfig)
}

// GetConfig returns the server configuration for the frontend.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.cfg)
}
