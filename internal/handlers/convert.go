package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ConvertHandler proxies model conversion to an external sidecar. The
// service itself never understands foreign weight formats.
type ConvertHandler struct {
	converterURL string
	client       *http.Client
}

func NewConvertHandler(converterURL string) *ConvertHandler {
	return &ConvertHandler{
		converterURL: converterURL,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (h *ConvertHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /convert", h.handleConvert)
}

func (h *ConvertHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if h.converterURL == "" {
		writeErrorMsg(w, http.StatusNotImplemented,
			"model converter not configured",
			"set CONVERTER_URL to enable conversion")
		return
	}

	// Stream the multipart body through untouched; the sidecar owns parsing.
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.converterURL+"/convert", r.Body)
	if err != nil {
		writeErrorMsg(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	req.Header.Set("Content-Type", r.Header.Get("Content-Type"))

	resp, err := h.client.Do(req)
	if err != nil {
		slog.Error("Converter proxy failed", "error", err)
		writeErrorMsg(w, http.StatusBadGateway,
			"converter service unavailable",
			"the model conversion sidecar is not responding")
		return
	}
	defer resp.Body.Close()

	// Pass the sidecar's Content-Type through; it knows what it produced.
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
