// Package handlers is the HTTP surface. Handlers decode, delegate to a
// service and encode; domain errors map onto status codes here and
// nowhere else.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/ratelimit"
)

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encoding failed", "error", err)
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg, hint string) {
	writeJSON(w, status, errorBody{Error: msg, Hint: hint})
}

// writeError maps domain errors to HTTP codes: validation 400, not found
// 404, rate limited 429, model still preprocessing 503. Anything else is
// an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve      *models.ValidationError
		nf      *models.NotFoundError
		loading *models.ModelLoadingError
		limited *ratelimit.Error
	)
	switch {
	case errors.As(err, &ve):
		writeErrorMsg(w, http.StatusBadRequest, ve.Msg, ve.Hint)
	case errors.As(err, &nf):
		writeErrorMsg(w, http.StatusNotFound, nf.Error(), "")
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())+1))
		writeErrorMsg(w, http.StatusTooManyRequests, limited.Error(), "")
	case errors.As(err, &loading):
		w.Header().Set("Retry-After", "5")
		writeErrorMsg(w, http.StatusServiceUnavailable, loading.Error(), "retry once preprocessing finishes")
	default:
		slog.Error("Request failed", "error", err)
		writeErrorMsg(w, http.StatusInternalServerError, "internal error", "")
	}
}

// WriteError exposes the error mapping for middleware outside the package.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.Invalid("malformed request body: %v", err)
	}
	return nil
}
