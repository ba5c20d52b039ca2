package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNoHandlers is returned when an event is emitted before any handler is
// registered. The event would otherwise be dropped silently.
var ErrNoHandlers = errors.New("no event handlers registered")

// InMemoryEventEmitter dispatches DeckRequested events synchronously to
// handlers registered in this process. Events are not persisted; a task
// whose event is lost is failed later by the reconciler.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "deck_event_emitter"),
	}
}

// RegisterHandler adds handler to every later dispatch.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("handler registered", "handler_count", len(e.handlers))
}

// EmitEvent validates event and passes it to every handler, even after one
// fails. The first handler error is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *DeckRequested) error {
	if err := event.Validate(); err != nil {
		e.logger.Error("refusing invalid event", "error", err)
		return err
	}

	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers...)
	e.mu.RUnlock()

	log := e.logger.With("event_id", event.ID, "task_id", event.TaskID)
	if len(handlers) == 0 {
		log.Error("no handlers registered")
		return ErrNoHandlers
	}

	log.Debug("dispatching deck requested", "handler_count", len(handlers), "inputs", len(event.Inputs))

	var firstErr error
	for i, handler := range handlers {
		err := handler.HandleEvent(ctx, event)
		if err == nil {
			continue
		}
		log.Error("handler failed", "handler_index", i, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
