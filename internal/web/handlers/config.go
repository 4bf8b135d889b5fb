package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kozaktomas/add-me-in/internal/ai"
	"github.com/kozaktomas/add-me-in/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config   *config.Config
	provider ai.Provider
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, provider ai.Provider) *ConfigHandler {
	return &ConfigHandler{
		config:   cfg,
		provider: provider,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model,omitempty"`
	Usage    *ai.Usage `json:"usage,omitempty"`
}

// Get returns the active image provider and its accumulated usage
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.response())
}

// ResetUsage zeroes the provider's token and cost counters and returns the
// fresh configuration.
func (h *ConfigHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		respondError(w, http.StatusServiceUnavailable, "no image provider configured")
		return
	}

	h.provider.ResetUsage()
	slog.Info("Usage counters reset", "model", h.provider.Name())
	respondJSON(w, http.StatusOK, h.response())
}

func (h *ConfigHandler) response() ConfigResponse {
	response := ConfigResponse{
		Provider: h.config.Provider,
	}
	if h.provider != nil {
		response.Model = h.provider.Name()
		response.Usage = h.provider.GetUsage()
	}
	return response
}
