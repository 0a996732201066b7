package handlers

import (
	"net/http"

	"github.com/aigoflow/proof-service/internal/services"
)

type HealthHandler struct {
	healthService  *services.HealthService
	metricsService *services.MetricsService
}

func NewHealthHandler(health *services.HealthService, metrics *services.MetricsService) *HealthHandler {
	return &HealthHandler{healthService: health, metricsService: metrics}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /metrics", h.handleMetrics)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.healthService.Check())
}

func (h *HealthHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.metricsService.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
