package domain

import "errors"

// Errors shared by domain validation and the layers that report it.
var (
	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("validation failed")

	ErrInvalidID = errors.New("invalid ID")

	// ErrUnauthorized is returned when no authenticated user is present.
	ErrUnauthorized = errors.New("unauthorized operation")
)
