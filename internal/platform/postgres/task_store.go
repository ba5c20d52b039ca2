package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/platform/logger"
	"github.com/phrazzld/deckgen-api/internal/store"
)

const taskColumns = `id, owner_id, title, status, stage, progress, result_url, error_message, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
// Every method borrows a pooled connection for the duration of one statement
// or one short transaction and never holds it across calls.
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db *sql.DB, logger *slog.Logger) *PostgresTaskStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
		now:    time.Now,
	}
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.DeckTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("invalid task rejected before insert",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO deck_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.OwnerID,
		task.Title,
		string(task.Status),
		string(task.Stage),
		task.Progress,
		nullString(task.ResultURL),
		nullString(task.ErrorMessage),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to insert task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("owner_id", task.OwnerID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeckTask, error) {
	query := `SELECT ` + taskColumns + ` FROM deck_tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return task, nil
}

// Update implements store.TaskStore.Update.
// The row is locked with SELECT ... FOR UPDATE, the change is validated by
// domain.DeckTask.Apply, and the result is written back in the same short
// transaction. Concurrent writers for one task are therefore serialized.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update domain.TaskUpdate,
) (*domain.DeckTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var updated *domain.DeckTask
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `SELECT ` + taskColumns + ` FROM deck_tasks WHERE id = $1 FOR UPDATE`
		task, err := scanTask(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrTaskNotFound
			}
			return MapError(err)
		}

		if err := task.Apply(update, s.now()); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE deck_tasks
			SET status = $1, stage = $2, progress = $3, result_url = $4,
				error_message = $5, updated_at = $6
			WHERE id = $7
		`,
			string(task.Status),
			string(task.Stage),
			task.Progress,
			nullString(task.ResultURL),
			nullString(task.ErrorMessage),
			task.UpdatedAt,
			id,
		)
		if err != nil {
			return MapError(err)
		}
		if err := CheckRowsAffected(result, "task"); err != nil {
			return err
		}

		updated = task
		return nil
	})
	if err != nil {
		log.Warn("task update rejected",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	return updated, nil
}

// ListByOwner implements store.TaskStore.ListByOwner
func (s *PostgresTaskStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.DeckTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM deck_tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return s.queryTasks(ctx, query, ownerID)
}

// FindStale implements store.TaskStore.FindStale
func (s *PostgresTaskStore) FindStale(ctx context.Context, olderThan time.Duration) ([]*domain.DeckTask, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM deck_tasks
		WHERE status IN ('pending', 'processing') AND updated_at < $1
		ORDER BY updated_at ASC
	`
	return s.queryTasks(ctx, query, s.now().UTC().Add(-olderThan))
}

func (s *PostgresTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.DeckTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.DeckTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.DeckTask, error) {
	var (
		task         domain.DeckTask
		status       string
		stage        string
		resultURL    sql.NullString
		errorMessage sql.NullString
	)

	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&status,
		&stage,
		&task.Progress,
		&resultURL,
		&errorMessage,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Stage = domain.Stage(stage)
	task.ResultURL = resultURL.String
	task.ErrorMessage = errorMessage.String
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
