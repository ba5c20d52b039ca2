package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned for a DeckRequested that could not start a run.
var ErrInvalidEvent = errors.New("invalid deck requested event")

// DeckRequested announces that a pending deck task is persisted and its
// sources are staged. Handlers start exactly one run per event.
type DeckRequested struct {
	ID          uuid.UUID
	TaskID      uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	StagingDir  string
	Inputs      []string
	RequestedAt time.Time
}

// NewDeckRequested builds a validated event. Inputs are copied so the
// caller's staging bookkeeping cannot change a run that is already queued.
func NewDeckRequested(
	taskID, ownerID uuid.UUID,
	title, stagingDir string,
	inputs []string,
) (*DeckRequested, error) {
	event := &DeckRequested{
		ID:          uuid.New(),
		TaskID:      taskID,
		OwnerID:     ownerID,
		Title:       title,
		StagingDir:  stagingDir,
		Inputs:      append([]string(nil), inputs...),
		RequestedAt: time.Now().UTC(),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// Validate reports which field would leave a run without work to do.
func (e *DeckRequested) Validate() error {
	switch {
	case e == nil:
		return ErrInvalidEvent
	case e.TaskID == uuid.Nil:
		return errors.Join(ErrInvalidEvent, errors.New("task ID is empty"))
	case e.OwnerID == uuid.Nil:
		return errors.Join(ErrInvalidEvent, errors.New("owner ID is empty"))
	case e.StagingDir == "":
		return errors.Join(ErrInvalidEvent, errors.New("staging dir is empty"))
	case len(e.Inputs) == 0:
		return errors.Join(ErrInvalidEvent, errors.New("no staged inputs"))
	default:
		return nil
	}
}

// EventHandler starts work for a DeckRequested.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *DeckRequested) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *DeckRequested) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *DeckRequested) error {
	return f(ctx, event)
}

// EventEmitter is what the service uses to hand off a submitted task.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *DeckRequested) error
}
