package handlers

import (
	"net/http"

	"github.com/wonny/trifund/internal/strategyconfig"
)

// ConfigHandler exposes the active strategy configuration
type ConfigHandler struct {
	cfg  *strategyconfig.Config
	hash string
}

func NewConfigHandler(cfg *strategyconfig.Config, hash string) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, hash: hash}
}

// Get returns the config together with the hash stamped on every run
// GET /api/v1/config
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_hash": h.hash,
		"config":      h.cfg,
	})
}
