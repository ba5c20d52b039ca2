package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/events"
	"github.com/phrazzld/deckgen-api/internal/platform/logger"
	"github.com/phrazzld/deckgen-api/internal/staging"
	"github.com/phrazzld/deckgen-api/internal/store"
)

// Upload is one submitted source file.
type Upload struct {
	Filename string
	Content  io.Reader
}

// DeckService provides deck submission and task status operations
// Version: 1.0
type DeckService interface {
	// SubmitDeck stages the uploads, records a pending task owned by ownerID,
	// and schedules its generation. It does not wait for the run.
	SubmitDeck(ctx context.Context, ownerID uuid.UUID, title string, uploads []Upload) (*domain.DeckTask, error)

	// GetTask returns the task if requesterID owns it.
	// Returns ErrTaskNotFound or ErrNotOwned otherwise.
	GetTask(ctx context.Context, taskID, requesterID uuid.UUID) (*domain.DeckTask, error)

	// ListTasks returns the requester's tasks, newest first.
	ListTasks(ctx context.Context, requesterID uuid.UUID) ([]*domain.DeckTask, error)
}

// DeckServiceConfig holds submission settings.
type DeckServiceConfig struct {
	// DefaultTitle replaces an empty submitted title.
	DefaultTitle string
	// StagingBaseDir is where per-task staging directories are created.
	StagingBaseDir string
	// MaxFiles bounds the number of sources per submission; 0 means no limit.
	MaxFiles int
}

// deckServiceImpl implements the DeckService interface
type deckServiceImpl struct {
	tasks   store.TaskStore
	emitter events.EventEmitter
	config  DeckServiceConfig
	logger  *slog.Logger
}

// Ensure deckServiceImpl implements DeckService interface
var _ DeckService = (*deckServiceImpl)(nil)

// NewDeckService creates a new DeckService.
// It returns an error if any of the required dependencies are nil.
func NewDeckService(
	tasks store.TaskStore,
	emitter events.EventEmitter,
	config DeckServiceConfig,
	logger *slog.Logger,
) (DeckService, error) {
	if tasks == nil {
		return nil, &DeckServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if emitter == nil {
		return nil, &DeckServiceError{Operation: "create_service", Message: "event emitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &deckServiceImpl{
		tasks:   tasks,
		emitter: emitter,
		config:  config,
		logger:  logger.With("component", "deck_service"),
	}, nil
}

// SubmitDeck implements DeckService.
func (s *deckServiceImpl) SubmitDeck(
	ctx context.Context,
	ownerID uuid.UUID,
	title string,
	uploads []Upload,
) (*domain.DeckTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(uploads) == 0 {
		return nil, ErrNoSources
	}
	if s.config.MaxFiles > 0 && len(uploads) > s.config.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManySources, len(uploads), s.config.MaxFiles)
	}

	record, err := domain.NewDeckTask(ownerID, title, s.config.DefaultTitle)
	if err != nil {
		return nil, NewDeckServiceError("submit_deck", "invalid task", err)
	}
	log = log.With("task_id", record.ID, "owner_id", ownerID)

	ws, err := staging.New(s.config.StagingBaseDir, record.ID)
	if err != nil {
		log.Error("failed to create staging dir", "error", err)
		return nil, NewDeckServiceError("submit_deck", "failed to stage sources", err)
	}
	for _, upload := range uploads {
		if _, err := ws.AddInput(upload.Filename, upload.Content); err != nil {
			s.removeStaging(log, ws)
			log.Error("failed to stage source", "error", err, "filename", upload.Filename)
			return nil, NewDeckServiceError("submit_deck", "failed to stage sources", err)
		}
	}

	if err := s.tasks.Create(ctx, record); err != nil {
		s.removeStaging(log, ws)
		log.Error("failed to save task", "error", err)
		return nil, NewDeckServiceError("submit_deck", "failed to save task", err)
	}

	event, err := events.NewDeckRequested(record.ID, record.OwnerID, record.Title, ws.Dir(), ws.Inputs())
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		log.Error("failed to schedule generation", "error", err)
		s.removeStaging(log, ws)
		s.markUnscheduled(ctx, log, record.ID)
		return nil, NewDeckServiceError("submit_deck", "failed to schedule generation",
			fmt.Errorf("%w: %w", ErrSchedulingFailed, err))
	}

	log.Info("deck submitted", "sources", len(uploads), "title", record.Title)
	return record, nil
}

// markUnscheduled fails a record whose run never started. It uses a
// detached context so a cancelled request still leaves a terminal record.
func (s *deckServiceImpl) markUnscheduled(ctx context.Context, log *slog.Logger, taskID uuid.UUID) {
	_, err := s.tasks.Update(context.WithoutCancel(ctx), taskID,
		domain.FailedUpdate("", ErrSchedulingFailed.Error()))
	if err != nil {
		log.Error("failed to mark unscheduled task failed", "error", err)
	}
}

func (s *deckServiceImpl) removeStaging(log *slog.Logger, ws *staging.Workspace) {
	if err := ws.Remove(); err != nil {
		log.Error("failed to remove staging dir", "error", err, "dir", ws.Dir())
	}
}

// GetTask implements DeckService.
func (s *deckServiceImpl) GetTask(ctx context.Context, taskID, requesterID uuid.UUID) (*domain.DeckTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	record, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			log.Error("failed to get task", "error", err, "task_id", taskID)
		}
		return nil, NewDeckServiceError("get_task", "failed to get task", err)
	}

	if record.OwnerID != requesterID {
		log.Warn("task requested by non-owner",
			"task_id", taskID,
			"requester_id", requesterID)
		return nil, ErrNotOwned
	}

	return record, nil
}

// ListTasks implements DeckService.
func (s *deckServiceImpl) ListTasks(ctx context.Context, requesterID uuid.UUID) ([]*domain.DeckTask, error) {
	records, err := s.tasks.ListByOwner(ctx, requesterID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			"error", err,
			"requester_id", requesterID)
		return nil, NewDeckServiceError("list_tasks", "failed to list tasks", err)
	}
	return records, nil
}
