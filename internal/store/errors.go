package store

import (
	"errors"
	"fmt"
)

// Sentinel errors every TaskStore implementation maps its failures onto.
var (
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate means a task with the same ID already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity means the record was rejected before or by the
	// database's own constraints. The wrapped error names the field.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed covers serialization failures and deadlocks.
	// The write may be retried.
	ErrTransactionFailed = errors.New("transaction failed")

	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)

// IsNotFoundError reports whether err is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError adds the entity and operation to a store failure.
type StoreError struct {
	Entity    string
	Operation string
	Message   string
	Err       error
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
