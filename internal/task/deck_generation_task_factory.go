package task

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/deckgen-api/internal/generation"
	"github.com/phrazzld/deckgen-api/internal/publish"
	"github.com/phrazzld/deckgen-api/internal/store"
)

// DeckGenerationTaskFactory builds DeckGenerationTask instances with shared
// dependencies.
type DeckGenerationTaskFactory struct {
	store        store.TaskStore
	connector    generation.Connector
	publisher    publish.Publisher
	instructions *generation.InstructionBuilder
	cfg          DeckGenerationConfig
	logger       *slog.Logger
}

// NewDeckGenerationTaskFactory validates dependencies and returns a factory.
func NewDeckGenerationTaskFactory(
	taskStore store.TaskStore,
	connector generation.Connector,
	publisher publish.Publisher,
	instructions *generation.InstructionBuilder,
	cfg DeckGenerationConfig,
	logger *slog.Logger,
) (*DeckGenerationTaskFactory, error) {
	if taskStore == nil {
		return nil, ErrNilStore
	}
	if connector == nil {
		return nil, ErrNilConnector
	}
	if publisher == nil {
		return nil, ErrNilPublisher
	}
	if instructions == nil {
		return nil, ErrNilInstruction
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.TerminalWriteTimeout <= 0 {
		return nil, fmt.Errorf("terminal write timeout must be positive, got %s", cfg.TerminalWriteTimeout)
	}

	return &DeckGenerationTaskFactory{
		store:        taskStore,
		connector:    connector,
		publisher:    publisher,
		instructions: instructions,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// CreateTask builds a runnable task for payload.
func (f *DeckGenerationTaskFactory) CreateTask(payload DeckGenerationPayload) (Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return &DeckGenerationTask{
		payload:      payload,
		store:        f.store,
		connector:    f.connector,
		publisher:    f.publisher,
		instructions: f.instructions,
		cfg:          f.cfg,
		logger: f.logger.With(
			"task_type", TaskTypeDeckGeneration,
			"task_id", payload.TaskID,
			"owner_id", payload.OwnerID,
		),
	}, nil
}
