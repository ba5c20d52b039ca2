package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/store"
)

// MockTaskStore is an in-memory store.TaskStore. Updates go through
// domain.DeckTask.Apply, so lifecycle rules match the Postgres store.
// Every successful update is recorded per task for ordering assertions.
type MockTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*domain.DeckTask
	history map[uuid.UUID][]domain.DeckTask

	// Optional hooks. When set they run before the default behavior; a
	// non-nil error is returned without touching the stored state.
	CreateErr     error
	UpdateHook    func(id uuid.UUID, update domain.TaskUpdate) error
	FindStaleErr  error
	ListByOwnerFn func(ctx context.Context, ownerID uuid.UUID) ([]*domain.DeckTask, error)

	// Now overrides the clock used for UpdatedAt.
	Now func() time.Time
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore returns an empty store.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks:   make(map[uuid.UUID]*domain.DeckTask),
		history: make(map[uuid.UUID][]domain.DeckTask),
	}
}

func (m *MockTaskStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.DeckTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}
	if err := task.Validate(); err != nil {
		return store.NewStoreError("task", "create", "invalid task", store.ErrInvalidEntity)
	}
	if _, exists := m.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}

	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

// GetByID implements store.TaskStore.
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeckTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

// Update implements store.TaskStore.
func (m *MockTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update domain.TaskUpdate,
) (*domain.DeckTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.UpdateHook != nil {
		if err := m.UpdateHook(id, update); err != nil {
			return nil, err
		}
	}

	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	next := *task
	if err := next.Apply(update, m.now()); err != nil {
		return nil, err
	}
	m.tasks[id] = &next
	m.history[id] = append(m.history[id], next)

	cp := next
	return &cp, nil
}

// ListByOwner implements store.TaskStore.
func (m *MockTaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.DeckTask, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, ownerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.DeckTask, 0)
	for _, task := range m.tasks {
		if task.OwnerID == ownerID {
			cp := *task
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() > result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// FindStale implements store.TaskStore.
func (m *MockTaskStore) FindStale(ctx context.Context, olderThan time.Duration) ([]*domain.DeckTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindStaleErr != nil {
		return nil, m.FindStaleErr
	}

	cutoff := m.now().Add(-olderThan)
	result := make([]*domain.DeckTask, 0)
	for _, task := range m.tasks {
		if !task.Status.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			cp := *task
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

// Put stores task as-is, bypassing validation. Tests use it to seed
// records in arbitrary states.
func (m *MockTaskStore) Put(task *domain.DeckTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.tasks[task.ID] = &cp
}

// History returns every state the task passed through via Update, in order.
func (m *MockTaskStore) History(id uuid.UUID) []domain.DeckTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DeckTask(nil), m.history[id]...)
}

// ProgressHistory returns the progress value after each successful update.
func (m *MockTaskStore) ProgressHistory(id uuid.UUID) []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := make([]int, 0, len(m.history[id]))
	for _, h := range m.history[id] {
		values = append(values, h.Progress)
	}
	return values
}
