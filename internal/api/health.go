package api

import (
	"net/http"

	"github.com/adaptive-alerting/detector-registry/internal/api/respond"
)

// HealthHandler reports aggregated service health.
type HealthHandler struct {
	isHealthy func() bool
}

func NewHealthHandler(isHealthy func() bool) *HealthHandler {
	return &HealthHandler{isHealthy: isHealthy}
}

// CheckHealth GET /api/health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if h.isHealthy != nil && !h.isHealthy() {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "DOWN"})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}
