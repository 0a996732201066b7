package handlers

import (
	"net/http"

	"github.com/aigoflow/proof-service/internal/services"
)

type VerifyHandler struct {
	verifyService *services.VerifyService
}

func NewVerifyHandler(verifyService *services.VerifyService) *VerifyHandler {
	return &VerifyHandler{verifyService: verifyService}
}

func (h *VerifyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /verify", h.handleVerify)
}

type verifyRequest struct {
	ReceiptID string `json:"receipt_id"`
}

func (h *VerifyHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.verifyService.Verify(req.ReceiptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
