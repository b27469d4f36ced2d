package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the stores and the core loops.
var (
	// ErrAlreadyExists signals a duplicate alert for an (item, intent)
	// pair. Expected during matching; callers skip and move on.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound signals a missing record (unknown parameter, empty
	// history, bad tracking token).
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a lost compare-and-set race on a learning
	// parameter. Retried once with fresh state before surfacing.
	ErrConflict = errors.New("conflict")
)

// ValidationError rejects malformed input at the boundary. Nothing that
// fails validation is ever partially processed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
