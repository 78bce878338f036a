package handlers

import (
	"net/http"
)

// HealthHandler reports liveness and which embedding strategy is active.
type HealthHandler struct {
	providerName string
	version      string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(providerName, version string) *HealthHandler {
	return &HealthHandler{providerName: providerName, version: version}
}

// Get handles GET /health.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"message":  "Face recognition service is running",
		"provider": h.providerName,
		"version":  h.version,
	})
}
