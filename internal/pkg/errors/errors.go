package errors

import "errors"

// Common application-wide errors shared across repositories and services.
var (
	// ErrNotFound is returned when a record or key is absent.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is returned for malformed or missing input data.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a resource already exists (e.g. duplicate email).
	ErrConflict = errors.New("resource state conflict")

	// ErrInternal is returned when a backing store or transport fails.
	// Fatal for the current request; nothing retries it.
	ErrInternal = errors.New("internal error")
)
