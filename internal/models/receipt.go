package models

import "time"

// Status is the receipt state machine. Submitted is momentary: inference
// runs before a receipt becomes externally visible, so callers only ever
// observe proving or a terminal status.
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

// CanTransition reports whether s -> to is a legal edge. Terminal states
// accept no further transitions.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusSubmitted:
		return to == StatusProving
	case StatusProving:
		return to == StatusVerified || to == StatusFailed
	case StatusVerified, StatusFailed:
		return false
	}
	return false
}

// ParseStatus mirrors the persisted representation; unknown values load as
// proving so a corrupt row can still be recovered as interrupted.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusVerified:
		return StatusVerified
	case StatusFailed:
		return StatusFailed
	default:
		return StatusProving
	}
}

// InferenceOutput is the deterministic result of one forward pass.
type InferenceOutput struct {
	RawOutput      []int32 `json:"raw_output"`
	PredictedClass int     `json:"predicted_class"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
}

// Receipt binds a model, input and output via content hashes, and carries
// the proof metadata once the background job reaches a terminal status.
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

	Error string `json:"error,omitempty"`
}

// ProofString is the short shareable form embedded in responses.
func (r *Receipt) ProofString() string {
	return "clawproof:" + r.ID + ":" + r.Output.Label + ":" + string(r.Status)
}

// TransitionFields carries the terminal-state payload applied atomically
// with a status transition.
type TransitionFields struct {
	ProofHash    string
	Proof        []byte
	ProofSize    *int
	ProveTimeMs  *int64
	VerifyTimeMs *int64
	Error        string
}

// Summary is the list-view projection of a receipt.
type Summary struct {
	ID           string    `json:"id"`
	ModelID      string    `json:"model_id"`
	ModelName    string    `json:"model_name"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	Status       string    `json:"status"`
	ProveTimeMs  *int64    `json:"prove_time_ms,omitempty"`
	VerifyTimeMs *int64    `json:"verify_time_ms,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats is the read-only aggregate over the receipt store.
type Stats struct {
	TotalProofs     uint64            `json:"total_proofs"`
	Verified        uint64            `json:"verified"`
	Failed          uint64            `json:"failed"`
	Proving         uint64            `json:"proving"`
	ByModel         map[string]uint64 `json:"by_model"`
	AvgProveTimeMs  *float64          `json:"avg_prove_time_ms"`
	AvgVerifyTimeMs *float64          `json:"avg_verify_time_ms"`
}
