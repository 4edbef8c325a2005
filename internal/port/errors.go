package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports. Each one also names an error kind that
// callers match with errors.Is.
var (
	ErrInvalidMove      = errors.New("invalid move")
	ErrValidationFailed = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrStrategyNotFound = errors.New("similarity strategy not found")
	ErrJobNotFound      = errors.New("job not found")
)

// Error carries a kind sentinel plus a human-readable reason.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// InvalidMove builds an ErrInvalidMove error.
func InvalidMove(format string, args ...any) error {
	return &Error{Kind: ErrInvalidMove, Reason: fmt.Sprintf(format, args...)}
}

// ValidationFailed builds an ErrValidationFailed error.
func ValidationFailed(format string, args ...any) error {
	return &Error{Kind: ErrValidationFailed, Reason: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Reason: fmt.Sprintf(format, args...)}
}

// KindName returns the stable name of err's kind, or "" if it has none.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMove):
		return "InvalidMove"
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrStrategyNotFound):
		return "ValidationFailed"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrJobNotFound):
		return "NotFound"
	}
	return ""
}

// Reason returns the reason of a structured error, or err.Error() otherwise.
func Reason(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}
