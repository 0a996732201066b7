package models

import "fmt"

// ValidationError is surfaced directly to callers with no retry guidance.
type ValidationError struct {
	Msg  string
	Hint string
}

func (e *ValidationError) Error() string { return e.Msg }

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func InvalidWithHint(msg, hint string) error {
	return &ValidationError{Msg: msg, Hint: hint}
}

// NotFoundError covers unknown model and receipt ids.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ModelLoadingError means the model is registered but its proving
// preprocessing has not finished yet; callers should retry shortly.
type ModelLoadingError struct {
	ModelID string
}

func (e *ModelLoadingError) Error() string {
	return fmt.Sprintf("model %s is still loading", e.ModelID)
}
