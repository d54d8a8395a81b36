package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the engine wraps exactly one of these,
// so callers can branch with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrStructuralInvariant = errors.New("structural invariant violated")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Error carries the failing operation alongside the kind.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input (missing ids, negative amounts).
func Validation(op, format string, args ...any) error {
	return newError(ErrValidation, op, format, args...)
}

// NotFound reports a referenced order, user or node that does not exist.
func NotFound(op, format string, args ...any) error {
	return newError(ErrNotFound, op, format, args...)
}

// AlreadyProcessed reports an idempotency key that was consumed earlier.
func AlreadyProcessed(op, format string, args ...any) error {
	return newError(ErrAlreadyProcessed, op, format, args...)
}

// Structural reports a broken tree or closure invariant. Never retried.
func Structural(op, format string, args ...any) error {
	return newError(ErrStructuralInvariant, op, format, args...)
}

// Conflict reports a lock or serialization failure. Safe to retry the whole unit of work.
func Conflict(op string, cause error) error {
	return &Error{Kind: ErrConcurrencyConflict, Op: op, Err: cause}
}

// IsRetryable returns true for errors the caller may retry as a whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
