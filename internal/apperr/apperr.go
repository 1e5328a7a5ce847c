// Package apperr defines the error kinds returned by the quotation engine.
// Callers match them with errors.As (typed errors) or errors.Is (sentinels)
// and map them to transport status codes; nothing here is swallowed internally.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a quotation or one of its items does not exist
// (or has been soft-deleted).
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input. It is always raised before any write.
type ValidationError struct {
	Field string
	Code  string
	// Violations holds every field problem found, Field/Code being the first one.
	Violations map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) > 1 {
		keys := make([]string, 0, len(e.Violations))
		for k := range e.Violations {
			keys = append(keys, k+"="+e.Violations[k])
		}
		sort.Strings(keys)
		return "validation failed: " + strings.Join(keys, ", ")
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Code)
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, code string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Violations: map[string]string{field: code}}
}

// FromViolations builds a ValidationError from a field→code map.
// Returns nil when the map is empty. The reported Field is the
// alphabetically first one so errors are deterministic.
func FromViolations(v map[string]string) *ValidationError {
	if len(v) == 0 {
		return nil
	}
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &ValidationError{Field: fields[0], Code: v[fields[0]], Violations: v}
}

// Prefixed returns a copy whose field names start with prefix.
func (e *ValidationError) Prefixed(prefix string) *ValidationError {
	v := make(map[string]string, len(e.Violations))
	for f, code := range e.Violations {
		v[prefix+f] = code
	}
	return FromViolations(v)
}

// InvalidTransitionError is returned when a status event is not allowed from
// the current status, notably any event on an accepted or rejected quotation.
type InvalidTransitionError struct {
	From  string
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s a quotation in status %q", e.Event, e.From)
}

// DocumentLockedError is returned when items or details of a terminal
// quotation are mutated.
type DocumentLockedError struct {
	Status string
}

func (e *DocumentLockedError) Error() string {
	return fmt.Sprintf("quotation is locked in status %q", e.Status)
}

// ConcurrencyConflictError means a lock or compare-and-set lost a race.
// Retrying the whole operation is safe.
type ConcurrencyConflictError struct {
	Resource string
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("concurrent modification of %s: %v", e.Resource, e.Err)
	}
	return "concurrent modification of " + e.Resource
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure. The triggering mutation has been
// rolled back when this is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsDomain reports whether err already belongs to the taxonomy above and must
// be propagated as-is instead of being wrapped in a PersistenceError.
func IsDomain(err error) bool {
	var (
		ve *ValidationError
		te *InvalidTransitionError
		le *DocumentLockedError
		ce *ConcurrencyConflictError
		pe *PersistenceError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.As(err, &ve) ||
		errors.As(err, &te) ||
		errors.As(err, &le) ||
		errors.As(err, &ce) ||
		errors.As(err, &pe)
}
