package handlers

import (
	"net/http"

	"github.com/aigoflow/proof-service/internal/services"
)

type UploadHandler struct {
	uploadService *services.UploadService
	maxBytes      int64
}

func NewUploadHandler(uploadService *services.UploadService, maxBytes int64) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, maxBytes: maxBytes}
}

func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /models/upload", h.handleUpload)
}

// handleUpload accepts a multipart form with parts "descriptor", "weights"
// and optionally "vocab". The whole body is bounded before parsing.
func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 3*h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "malformed multipart form", "send descriptor, weights and optional vocab parts")
		return
	}

	descriptor, _, err := r.FormFile("descriptor")
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "missing descriptor part", "attach the model descriptor as form part \"descriptor\"")
		return
	}
	weights, _, err := r.FormFile("weights")
	if err != nil {
		descriptor.Close()
		writeErrorMsg(w, http.StatusBadRequest, "missing weights part", "attach the weight file as form part \"weights\"")
		return
	}
	vocab, _, err := r.FormFile("vocab")
	if err != nil {
		vocab = nil
	}

	res, err := h.uploadService.Upload(descriptor, weights, vocab)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
