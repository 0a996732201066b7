package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/services"
)

type ReceiptHandler struct {
	store   *receipts.Store
	metrics *services.MetricsService
	baseURL string
}

func NewReceiptHandler(store *receipts.Store, metrics *services.MetricsService, baseURL string) *ReceiptHandler {
	return &ReceiptHandler{store: store, metrics: metrics, baseURL: baseURL}
}

func (h *ReceiptHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /receipt/{id}", h.handleGet)
	mux.HandleFunc("GET /receipts/recent", h.handleRecent)
}

type receiptResponse struct {
	*models.Receipt
	ProofString string `json:"proof_string"`
}

// handleGet negotiates the representation: ?format=jsonld wins, then an
// Accept header naming application/json, then the rendered HTML page.
func (h *ReceiptHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "jsonld" {
		h.writeJSONLD(w, receipt)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, receiptResponse{Receipt: receipt, ProofString: receipt.ProofString()})
		return
	}
	h.writeHTML(w, receipt)
}

func (h *ReceiptHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	summaries, err := h.metrics.Recent(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// writeJSONLD renders a schema.org DigitalDocument so receipts can be
// linked and indexed as structured data.
func (h *ReceiptHandler) writeJSONLD(w http.ResponseWriter, receipt *models.Receipt) {
	var completed interface{}
	if receipt.CompletedAt != nil {
		completed = receipt.CompletedAt.Format(time.RFC3339)
	}
	doc := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "DigitalDocument",
		"identifier":  receipt.ID,
		"name":        "zkML Proof Receipt — " + receipt.ModelName,
		"description": "Cryptographic proof of ML inference for model '" + receipt.ModelID + "'",
		"dateCreated": receipt.CreatedAt.Format(time.RFC3339),
		"dateModified": completed,
		"creator": map[string]interface{}{
			"@type": "SoftwareApplication",
			"name":  "ClawProof",
			"url":   h.baseURL,
		},
		"about": map[string]interface{}{
			"@type":      "SoftwareApplication",
			"name":       receipt.ModelName,
			"identifier": receipt.ModelID,
		},
		"status":         string(receipt.Status),
		"model_hash":     receipt.ModelHash,
		"input_hash":     receipt.InputHash,
		"output_hash":    receipt.OutputHash,
		"proof_hash":     receipt.ProofHash,
		"proof_size":     receipt.ProofSize,
		"prove_time_ms":  receipt.ProveTimeMs,
		"verify_time_ms": receipt.VerifyTimeMs,
		"prediction": map[string]interface{}{
			"label":           receipt.Output.Label,
			"confidence":      receipt.Output.Confidence,
			"predicted_class": receipt.Output.PredictedClass,
		},
	}
	w.Header().Set("Content-Type", "application/ld+json")
	writeJSON(w, http.StatusOK, doc)
}
