package handlers

import (
	"fmt"
	"net/http"

	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/receipts"
)

type BadgeHandler struct {
	store *receipts.Store
}

func NewBadgeHandler(store *receipts.Store) *BadgeHandler {
	return &BadgeHandler{store: store}
}

func (h *BadgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /badge/{id}", h.handleBadge)
}

// handleBadge renders a shields-style status badge. Terminal statuses are
// immutable so they cache for an hour; proving badges never cache.
func (h *BadgeHandler) handleBadge(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var statusText, color, bgColor, cacheControl string
	switch receipt.Status {
	case models.StatusVerified:
		statusText, color, bgColor, cacheControl = "verified", "#155724", "#d4edda", "public, max-age=3600"
	case models.StatusFailed:
		statusText, color, bgColor, cacheControl = "failed", "#721c24", "#f8d7da", "public, max-age=3600"
	default:
		statusText, color, bgColor, cacheControl = "proving", "#856404", "#fff3cd", "no-cache"
	}

	const label = "ClawProof"
	labelWidth := len(label)*7 + 10
	valueWidth := len(statusText)*7 + 10
	totalWidth := labelWidth + valueWidth
	labelX := labelWidth / 2
	valueX := labelWidth + valueWidth/2

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="20" role="img" aria-label="%[2]s: %[3]s">
  <title>%[2]s: %[3]s</title>
  <linearGradient id="s" x2="0" y2="100%%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  <clipPath id="r"><rect width="%[1]d" height="20" rx="3" fill="#fff"/></clipPath>
  <g clip-path="url(#r)">
    <rect width="%[4]d" height="20" fill="#555"/>
    <rect x="%[4]d" width="%[5]d" height="20" fill="%[6]s"/>
    <rect width="%[1]d" height="20" fill="url(#s)"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" text-rendering="geometricPrecision" font-size="110">
    <text aria-hidden="true" x="%[7]d0" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)">%[2]s</text>
    <text x="%[7]d0" y="140" transform="scale(.1)">%[2]s</text>
    <text aria-hidden="true" x="%[8]d0" y="150" fill="#010101" fill-opacity=".3" transform="scale(.1)">%[3]s</text>
    <text x="%[8]d0" y="140" transform="scale(.1)" fill="%[9]s">%[3]s</text>
  </g>
</svg>`, totalWidth, label, statusText, labelWidth, valueWidth, bgColor, labelX, valueX, color)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(svg))
}
