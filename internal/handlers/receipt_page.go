package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/aigoflow/proof-service/internal/models"
)

// receiptPage is the human-facing receipt view. Proving receipts refresh
// themselves until the proof reaches a terminal status.
var receiptPage = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
{{if .AutoRefresh}}<meta http-equiv="refresh" content="3">{{end}}
<title>Receipt — clawproof</title>
<style>
*, *::before, *::after { margin: 0; padding: 0; box-sizing: border-box; }
:root {
  --bg: #ffffff; --border: #d8dce3; --text: #111827; --text-2: #4b5563; --text-3: #9ca3af;
  --green: #16a34a; --green-bg: #f0fdf4; --amber: #d97706; --amber-bg: #fffbeb;
  --red: #dc2626; --red-bg: #fef2f2;
  --mono: 'SF Mono', 'Fira Code', Menlo, monospace;
}
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', system-ui, sans-serif;
  background: var(--bg); color: var(--text); }
.page { max-width: 600px; margin: 0 auto; padding: 3rem 1.25rem 4rem; }
.page-header { display: flex; align-items: center; justify-content: space-between; margin-bottom: 1.5rem; }
.wordmark { font-size: 1rem; font-weight: 600; color: var(--text); text-decoration: none; }
.status-badge { display: inline-flex; padding: 0.25rem 0.625rem; border-radius: 9999px;
  font-size: 0.75rem; font-weight: 500; }
.status-badge.proving { background: var(--amber-bg); color: var(--amber); }
.status-badge.verified { background: var(--green-bg); color: var(--green); }
.status-badge.failed { background: var(--red-bg); color: var(--red); }
.card { border: 1px solid var(--border); border-radius: 8px; margin-bottom: 1rem; }
.card-header { padding: 0.625rem 1rem; font-size: 0.8rem; font-weight: 600;
  color: var(--text-2); border-bottom: 1px solid var(--border); }
.row { display: flex; justify-content: space-between; gap: 1rem;
  padding: 0.625rem 1rem; border-bottom: 1px solid var(--border); font-size: 0.85rem; }
.row.last { border-bottom: none; }
.row-label { color: var(--text-3); white-space: nowrap; }
.row-value { text-align: right; word-break: break-all; }
.mono { font-family: var(--mono); font-size: 0.78rem; }
.error-notice { padding: 0.875rem 1rem; color: var(--red); font-size: 0.85rem; }
.proving-notice { padding: 0.875rem 1rem; color: var(--amber); font-size: 0.85rem; }
</style>
</head>
<body>
<div class="page">
  <div class="page-header">
    <a class="wordmark" href="{{.BaseURL}}">clawproof</a>
    <span class="status-badge {{.StatusClass}}">{{.StatusLabel}}</span>
  </div>
  <div class="card">
    <div class="card-header">Receipt</div>
    <div class="row"><span class="row-label">ID</span><span class="row-value mono">{{.Receipt.ID}}</span></div>
    <div class="row"><span class="row-label">Model</span><span class="row-value">{{.Receipt.ModelName}}</span></div>
    <div class="row"><span class="row-label">Prediction</span><span class="row-value">{{.Receipt.Output.Label}} ({{printf "%.1f" .ConfidencePct}}%)</span></div>
    <div class="row"><span class="row-label">Created</span><span class="row-value">{{.Created}}</span></div>
    <div class="row last"><span class="row-label">Completed</span><span class="row-value">{{.Completed}}</span></div>
  </div>
  <div class="card">
    <div class="card-header">Hashes</div>
    <div class="row"><span class="row-label">Model</span><span class="row-value mono">{{.Receipt.ModelHash}}</span></div>
    <div class="row"><span class="row-label">Input</span><span class="row-value mono">{{.Receipt.InputHash}}</span></div>
    <div class="row last"><span class="row-label">Output</span><span class="row-value mono">{{.Receipt.OutputHash}}</span></div>
  </div>
  {{if .Verified}}
  <div class="card">
    <div class="card-header">Proof</div>
    <div class="row"><span class="row-label">Proof hash</span><span class="row-value mono">{{.Receipt.ProofHash}}</span></div>
    <div class="row"><span class="row-label">Size</span><span class="row-value">{{.ProofSize}} bytes</span></div>
    <div class="row"><span class="row-label">Prove time</span><span class="row-value">{{.ProveTime}} ms</span></div>
    <div class="row last"><span class="row-label">Verify time</span><span class="row-value">{{.VerifyTime}} ms</span></div>
  </div>
  {{else if .Failed}}
  <div class="card">
    <div class="card-header">Error</div>
    <div class="error-notice">{{.Error}}</div>
  </div>
  {{else}}
  <div class="card">
    <div class="card-header">Proof</div>
    <div class="proving-notice" role="status">Generating SNARK proof. This page refreshes automatically.</div>
  </div>
  {{end}}
</div>
</body>
</html>
`))

type receiptPageData struct {
	Receipt       *models.Receipt
	BaseURL       string
	StatusClass   string
	StatusLabel   string
	AutoRefresh   bool
	Verified      bool
	Failed        bool
	ConfidencePct float64
	Created       string
	Completed     string
	ProofSize     string
	ProveTime     string
	VerifyTime    string
	Error         string
}

func optInt(v *int) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%d", *v)
}

func optInt64(v *int64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%d", *v)
}

func (h *ReceiptHandler) writeHTML(w http.ResponseWriter, receipt *models.Receipt) {
	statusLabels := map[models.Status]string{
		models.StatusProving:  "Proving",
		models.StatusVerified: "Verified",
		models.StatusFailed:   "Failed",
	}
	data := receiptPageData{
		Receipt:       receipt,
		BaseURL:       h.baseURL,
		StatusClass:   string(receipt.Status),
		StatusLabel:   statusLabels[receipt.Status],
		AutoRefresh:   receipt.Status == models.StatusProving,
		Verified:      receipt.Status == models.StatusVerified,
		Failed:        receipt.Status == models.StatusFailed,
		ConfidencePct: receipt.Output.Confidence * 100,
		Created:       receipt.CreatedAt.Format("2006-01-02 15:04:05 UTC"),
		Completed:     "—",
		ProofSize:     optInt(receipt.ProofSize),
		ProveTime:     optInt64(receipt.ProveTimeMs),
		VerifyTime:    optInt64(receipt.VerifyTimeMs),
		Error:         receipt.Error,
	}
	if data.Error == "" {
		data.Error = "Unknown error"
	}
	if receipt.CompletedAt != nil {
		data.Completed = receipt.CompletedAt.Format("2006-01-02 15:04:05 UTC")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := receiptPage.Execute(w, data); err != nil {
		slog.Error("Receipt page rendering failed", "receipt_id", receipt.ID, "error", err)
	}
}
