package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrEventNotFound is returned when an event ID cannot be found in durable storage.
var ErrEventNotFound = errors.New("event not found")

// ErrUnauthenticated is returned when a turn arrives without an owner identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when the caller does not own the session.
var ErrForbidden = errors.New("forbidden")

// ErrSessionComplete is returned when a turn targets a session that already reached Complete.
var ErrSessionComplete = errors.New("session already complete")

// ErrStalePosition is returned when the client answers a prompt the session has moved past.
var ErrStalePosition = errors.New("stale position")

// ErrInvalidPosition is returned when a position token cannot be decoded.
var ErrInvalidPosition = errors.New("invalid position token")

// ErrBudgetExceeded is returned by a gateway when a challenge upsert would push
// the committed prizes above the event budget.
var ErrBudgetExceeded = errors.New("prize total exceeds budget")

// ValidationError describes why an answer was rejected.
// It is never surfaced to clients as a failure: the engine turns it into a clarification prompt.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// PersistenceError wraps a durable storage failure.
// The session is left at the same position so that repeating the turn is safe.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable wraps err as a PersistenceError for op. A nil err stays nil.
func Retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsRetryable reports whether the client may repeat the same turn.
func IsRetryable(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
