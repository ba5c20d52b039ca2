package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/deckgen-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is; the API layer maps them to status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the one making the request.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrTaskNotFound indicates that the task does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoSources indicates a submission without any source files.
	ErrNoSources = errors.New("at least one source file is required")

	// ErrTooManySources indicates a submission over the configured file limit.
	ErrTooManySources = errors.New("too many source files")

	// ErrSchedulingFailed indicates the task was recorded but could not be
	// handed to a runner. The record is marked failed.
	ErrSchedulingFailed = errors.New("failed to schedule generation")
)

// DeckServiceError wraps errors from the deck service with context.
type DeckServiceError struct {
	// Operation is the operation that failed (e.g., "submit_deck", "get_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for DeckServiceError.
func (e *DeckServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deck service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("deck service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DeckServiceError) Unwrap() error {
	return e.Err
}

// NewDeckServiceError creates a new DeckServiceError.
// Known sentinel errors are returned directly without wrapping, and store
// not-found errors become ErrTaskNotFound.
func NewDeckServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{ErrNotOwned, ErrTaskNotFound, ErrNoSources, ErrTooManySources} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	if store.IsNotFoundError(err) {
		return ErrTaskNotFound
	}

	return &DeckServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
