package handlers

import (
	"net/http"

	"github.com/aigoflow/proof-service/internal/services"
)

type ProveHandler struct {
	proveService *services.ProveService
}

func NewProveHandler(proveService *services.ProveService) *ProveHandler {
	return &ProveHandler{proveService: proveService}
}

func (h *ProveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /prove", h.handleProve)
	mux.HandleFunc("POST /prove/batch", h.handleBatch)
}

func (h *ProveHandler) handleProve(w http.ResponseWriter, r *http.Request) {
	var req services.ProveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.proveService.Prove(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ProveHandler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var batch services.BatchRequest
	if err := decodeJSON(r, &batch); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.proveService.ProveBatch(r.Context(), &batch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
