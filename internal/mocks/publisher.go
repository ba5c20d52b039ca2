package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/publish"
)

// MockPublisher implements publish.Publisher for testing
type MockPublisher struct {
	// PublishFn allows test cases to mock the Publish behavior
	PublishFn func(ctx context.Context, localPath string, taskID uuid.UUID) (string, error)

	// Err is returned when PublishFn is not set
	Err error

	mu        sync.Mutex
	Published []uuid.UUID
}

var _ publish.Publisher = (*MockPublisher)(nil)

// Publish implements the publish.Publisher interface. By default it returns
// "/generated/{id}.pdf".
func (m *MockPublisher) Publish(ctx context.Context, localPath string, taskID uuid.UUID) (string, error) {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, localPath, taskID)
	}
	if m.Err != nil {
		return "", m.Err
	}
	m.mu.Lock()
	m.Published = append(m.Published, taskID)
	m.mu.Unlock()
	return publish.URLPrefix + publish.ObjectName(taskID), nil
}
