package editor

import (
	"errors"
	"fmt"
)

var (
	// ErrRunMasked rejects converting a run that already has a replacement.
	ErrRunMasked = errors.New("text run already converted")
	ErrNoRun     = errors.New("no such text run")
	ErrNoPage    = errors.New("no page loaded")
)

// ValidationError reports bad user input. It is raised before any state
// changes and surfaced to the user as a warning.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
