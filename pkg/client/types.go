package client

import "time"

// Status is the receipt lifecycle as exposed over the API.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusProving   Status = "proving"
	StatusVerified  Status = "verified"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// ProveInput carries exactly one of the three input forms.
type ProveInput struct {
	Text   *string        `json:"text,omitempty"`
	Fields map[string]int `json:"fields,omitempty"`
	Raw    []int32        `json:"raw,omitempty"`
}

// ProveRequest represents one proof submission.
type ProveRequest struct {
	ModelID    string     `json:"model_id"`
	Input      ProveInput `json:"input"`
	WebhookURL string     `json:"webhook_url,omitempty"`
}

// InferenceOutput is the deterministic result of one forward pass.
type InferenceOutput struct {
	RawOutput      []int32 `json:"raw_output"`
	PredictedClass int     `json:"predicted_class"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
}

// ProveResult is the immediate response to a submission; the proof is
// generated in the background and tracked through the receipt.
type ProveResult struct {
	ReceiptID   string          `json:"receipt_id"`
	ReceiptURL  string          `json:"receipt_url"`
	ModelID     string          `json:"model_id"`
	Output      InferenceOutput `json:"output"`
	Status      Status          `json:"status"`
	ProofString string          `json:"proof_string"`
}

// BatchRequest submits several proof requests atomically.
type BatchRequest struct {
	Requests []ProveRequest `json:"requests"`
}

// BatchResult carries one result per submitted request.
type BatchResult struct {
	Count   int           `json:"count"`
	Results []ProveResult `json:"results"`
}

// Receipt is the full JSON representation of a proof receipt.
type Receipt struct {
	ID          string     `json:"id"`
	ModelID     string     `json:"model_id"`
	ModelName   string     `json:"model_name"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ModelHash  string `json:"model_hash"`
	InputHash  string `json:"input_hash"`
	OutputHash string `json:"output_hash"`

	Output InferenceOutput `json:"output"`

	ProofHash    string `json:"proof_hash,omitempty"`
	ProofSize    *int   `json:"proof_size,omitempty"`
	ProveTimeMs  *int64 `json:"prove_time_ms,omitempty"`
	VerifyTimeMs *int64 `json:"verify_time_ms,omitempty"`

	Error       string `json:"error,omitempty"`
	ProofString string `json:"proof_string,omitempty"`
}

// VerifyResult reports the outcome of re-checking a stored proof.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	ReceiptID string `json:"receipt_id"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// FieldSchema declares one named numeric input field and its range.
type FieldSchema struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
}

// Model is a registered model descriptor.
type Model struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	InputType   string        `json:"input_type"`
	InputDim    int           `json:"input_dim"`
	Labels      []string      `json:"labels"`
	TraceLength int           `json:"trace_length"`
	Fields      []FieldSchema `json:"fields,omitempty"`
	ModelHash   string        `json:"model_hash,omitempty"`
	Uploaded    bool          `json:"uploaded,omitempty"`
	UploadedAt  *time.Time    `json:"uploaded_at,omitempty"`
}

// HealthStatus represents the service health document.
type HealthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ProofSystem string `json:"proof_system"`
	ModelsTotal int    `json:"models_total"`
	ModelsReady int    `json:"models_ready"`
	PendingJobs int    `json:"pending_jobs"`
}

// Stats is the aggregate over all receipts.
type Stats struct {
	TotalProofs     uint64            `json:"total_proofs"`
	Verified        uint64            `json:"verified"`
	Failed          uint64            `json:"failed"`
	Proving         uint64            `json:"proving"`
	ByModel         map[string]uint64 `json:"by_model"`
	AvgProveTimeMs  *float64          `json:"avg_prove_time_ms"`
	AvgVerifyTimeMs *float64          `json:"avg_verify_time_ms"`
}
