// Package httpx holds the JSON helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/diewo77/go-quotations/gate"
	"github.com/diewo77/go-quotations/internal/apperr"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// DecodeJSON reads one JSON object from r into dst. Unknown fields and
// trailing data are rejected as validation errors on "body".
func DecodeJSON(r *http.Request, dst any) error {
	return decodeJSON(r, dst, false)
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be left out.
// An empty body, whatever the Content-Length header says, leaves dst as is.
func DecodeOptionalJSON(r *http.Request, dst any) error {
	return decodeJSON(r, dst, true)
}

func decodeJSON(r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return apperr.Invalid("body", "required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return apperr.Invalid("body", "required")
		}
		return apperr.Invalid("body", "malformed_json")
	}
	if dec.More() {
		return apperr.Invalid("body", "malformed_json")
	}
	return nil
}

// StatusOf maps an error to its HTTP status and public code.
func StatusOf(err error) (int, string) {
	var (
		ve *apperr.ValidationError
		te *apperr.InvalidTransitionError
		le *apperr.DocumentLockedError
		ce *apperr.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &te):
		return http.StatusConflict, "invalid_transition"
	case errors.As(err, &le):
		return http.StatusLocked, "document_locked"
	case errors.As(err, &ce):
		return http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, gate.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, gate.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "internal_error"
}

// WriteError writes err as an ErrorResponse. Validation errors carry their
// field violations as details; internal errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusOf(err)
	var details any
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		details = ve.Violations
	case status != http.StatusInternalServerError:
		details = err.Error()
	}
	JSONError(w, status, code, details)
}
