package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors for cross-layer signaling.
var (
	// ErrValidation marks input rejected before any backend was contacted (HTTP 422).
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not_found")
	// ErrUnavailable marks a backend that could not be reached or returned garbage.
	ErrUnavailable = errors.New("storage_unavailable")
	// ErrConflict is returned when the same record is already being changed.
	ErrConflict = errors.New("conflict")
)

// Unavailable wraps a backend failure so both the sentinel and the cause match errors.Is.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Code returns a short machine readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
