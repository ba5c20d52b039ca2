package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type constants
const (
	// TaskTypeDeckGeneration identifies slide-deck generation runs.
	TaskTypeDeckGeneration = "deck_generation"
)

// Task represents a unit of background work to be processed
// Version: 1.0
type Task interface {
	// ID returns the identifier of the record this task reports to
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task to completion. Implementations own their
	// status reporting; the returned error is informational.
	Execute(ctx context.Context) error
}
