package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/deckgen-api/internal/events"
)

// TaskFactory creates runnable tasks from deck generation payloads.
type TaskFactory interface {
	CreateTask(payload DeckGenerationPayload) (Task, error)
}

// Submitter schedules tasks for background execution.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns DeckRequested events into submitted tasks.
type TaskFactoryEventHandler struct {
	taskFactory TaskFactory
	taskRunner  Submitter
	logger      *slog.Logger
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// NewTaskFactoryEventHandler creates a new event handler that uses the given task factory
// to create tasks, and submits them to the provided task runner.
func NewTaskFactoryEventHandler(
	taskFactory TaskFactory,
	taskRunner Submitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		taskFactory: taskFactory,
		taskRunner:  taskRunner,
		logger:      logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent builds a deck generation task from event and submits it.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.DeckRequested) error {
	log := h.logger.With("event_id", event.ID, "task_id", event.TaskID)

	task, err := h.taskFactory.CreateTask(PayloadFromEvent(event))
	if err != nil {
		log.Error("failed to create task", "error", err)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.taskRunner.Submit(ctx, task); err != nil {
		log.Error("failed to submit task", "error", err)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	log.Info("task created and submitted", "inputs", len(event.Inputs))
	return nil
}

// PayloadFromEvent copies the run parameters out of a DeckRequested.
func PayloadFromEvent(event *events.DeckRequested) DeckGenerationPayload {
	return DeckGenerationPayload{
		TaskID:     event.TaskID,
		OwnerID:    event.OwnerID,
		Title:      event.Title,
		StagingDir: event.StagingDir,
		Inputs:     append([]string(nil), event.Inputs...),
	}
}
