package models

import "time"

// InputType describes the input contract a model exposes to callers.
type InputType string

const (
	InputTypeText   InputType = "text"
	InputTypeFields InputType = "structured_fields"
	InputTypeRaw    InputType = "raw"
)

func ParseInputType(s string) (InputType, bool) {
	switch InputType(s) {
	case InputTypeText, InputTypeFields, InputTypeRaw:
		return InputType(s), true
	}
	return "", false
}

// FieldSchema declares one named numeric input field and its allowed range.
type FieldSchema struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
}

// Model is an immutable descriptor of a provable model. Once registered it
// is never mutated; uploads replace nothing and ids are never reused.
type Model struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	InputType   InputType     `json:"input_type"`
	InputDim    int           `json:"input_dim"`
	Labels      []string      `json:"labels"`
	TraceLength int           `json:"trace_length"`
	Fields      []FieldSchema `json:"fields,omitempty"`

	// ModelHash is the Keccak256 of the canonical weight bytes, computed
	// once at scan or upload time.
	ModelHash string `json:"model_hash,omitempty"`

	// Upload metadata, empty for built-in models.
	Uploaded   bool              `json:"uploaded,omitempty"`
	UploadedAt *time.Time        `json:"uploaded_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ProveInput carries exactly one of the three input forms.
type ProveInput struct {
	Text   *string        `json:"text,omitempty"`
	Fields map[string]int `json:"fields,omitempty"`
	Raw    []int32        `json:"raw,omitempty"`
}
