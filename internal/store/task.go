package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
)

// TaskStore defines the interface for deck task persistence.
// Implementations must tolerate concurrent writes keyed by task ID and must
// not hold a connection or transaction between calls.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task record.
	// Returns ErrDuplicate if a task with the same ID already exists.
	Create(ctx context.Context, task *domain.DeckTask) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeckTask, error)

	// Update applies a partial update to a task as one atomic write on its own
	// short-lived transaction, returning the updated record.
	// Returns ErrTaskNotFound if the task does not exist, and domain transition
	// errors if the update would break the task's lifecycle rules.
	Update(ctx context.Context, id uuid.UUID, update domain.TaskUpdate) (*domain.DeckTask, error)

	// ListByOwner returns all tasks owned by ownerID, newest first.
	// Returns an empty slice if the owner has no tasks.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.DeckTask, error)

	// FindStale returns non-terminal tasks whose last update is older than
	// olderThan, oldest first.
	FindStale(ctx context.Context, olderThan time.Duration) ([]*domain.DeckTask, error)
}
