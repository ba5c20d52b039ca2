package postgres

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewPostgresTaskStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func taskRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "title", "status", "stage", "progress",
		"result_url", "error_message", "created_at", "updated_at",
	})
}

func addTaskRow(rows *sqlmock.Rows, task *domain.DeckTask) *sqlmock.Rows {
	var resultURL, errorMessage any
	if task.ResultURL != "" {
		resultURL = task.ResultURL
	}
	if task.ErrorMessage != "" {
		errorMessage = task.ErrorMessage
	}
	return rows.AddRow(
		task.ID.String(), task.OwnerID.String(), task.Title, string(task.Status),
		string(task.Stage), task.Progress, resultURL, errorMessage,
		task.CreatedAt, task.UpdatedAt,
	)
}

func pendingTask(t *testing.T) *domain.DeckTask {
	t.Helper()
	task, err := domain.NewDeckTask(uuid.New(), "Q3 Review", "Untitled Deck")
	require.NoError(t, err)
	return task
}

func TestPostgresTaskStore_Create(t *testing.T) {
	t.Run("inserts a pending task", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deck_tasks")).
			WithArgs(task.ID.String(), task.OwnerID.String(), "Q3 Review", "pending", "", 0,
				nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Create(context.Background(), task))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects an invalid task without touching the database", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)
		task.ResultURL = "/generated/early.pdf"

		err := s.Create(context.Background(), task)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violations to ErrDuplicate", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deck_tasks")).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

		err := s.Create(context.Background(), task)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})
}

func TestPostgresTaskStore_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM deck_tasks WHERE id = $1")).
			WithArgs(task.ID.String()).
			WillReturnRows(addTaskRow(taskRows(), task))

		got, err := s.GetByID(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, task.OwnerID, got.OwnerID)
		assert.Equal(t, domain.TaskStatusPending, got.Status)
		assert.Empty(t, got.ResultURL)
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM deck_tasks WHERE id = $1")).
			WithArgs(id.String()).
			WillReturnRows(taskRows())

		_, err := s.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.True(t, store.IsNotFoundError(err))
	})
}

func TestPostgresTaskStore_Update(t *testing.T) {
	selectForUpdate := regexp.QuoteMeta("FROM deck_tasks WHERE id = $1 FOR UPDATE")

	t.Run("applies the change in one short transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)
		require.NoError(t, task.Apply(domain.ProcessingUpdate(20), fixedNow.Add(-time.Minute)))

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WithArgs(task.ID.String()).
			WillReturnRows(addTaskRow(taskRows(), task))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE deck_tasks")).
			WithArgs("processing", "stage_sources", 30, nil, nil, fixedNow, task.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := s.Update(context.Background(), task.ID,
			domain.ProgressUpdate(domain.StageStageSources, 30))
		require.NoError(t, err)
		assert.Equal(t, 30, got.Progress)
		assert.Equal(t, fixedNow, got.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("records the terminal failure", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)
		require.NoError(t, task.Apply(domain.ProcessingUpdate(70), fixedNow.Add(-time.Minute)))

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).
			WillReturnRows(addTaskRow(taskRows(), task))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE deck_tasks")).
			WithArgs("failed", "await_generation", 70, nil, "await_generation: generation timeout",
				fixedNow, task.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := s.Update(context.Background(), task.ID, domain.FailedUpdate(
			domain.StageAwaitGeneration, "await_generation: generation timeout"))
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the task is already terminal", func(t *testing.T) {
		s, mock := newMockStore(t)
		task := pendingTask(t)
		require.NoError(t, task.Apply(domain.FailedUpdate("", "interrupted"), fixedNow))

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WillReturnRows(addTaskRow(taskRows(), task))
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), task.ID, domain.ProcessingUpdate(10))
		assert.ErrorIs(t, err, domain.ErrTaskFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), uuid.New(), domain.ProcessingUpdate(10))
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresTaskStore_ListByOwner(t *testing.T) {
	s, mock := newMockStore(t)
	owner := uuid.New()

	older := pendingTask(t)
	older.OwnerID = owner
	newer := pendingTask(t)
	newer.OwnerID = owner
	newer.CreatedAt = older.CreatedAt.Add(time.Second)

	rows := addTaskRow(addTaskRow(taskRows(), newer), older)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(owner.String()).
		WillReturnRows(rows)

	tasks, err := s.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, newer.ID, tasks[0].ID)
	assert.Equal(t, older.ID, tasks[1].ID)

	t.Run("no tasks yields an empty slice", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE owner_id = $1")).WillReturnRows(taskRows())

		tasks, err := s.ListByOwner(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})
}

func TestPostgresTaskStore_FindStale(t *testing.T) {
	s, mock := newMockStore(t)
	stale := pendingTask(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ('pending', 'processing') AND updated_at < $1")).
		WithArgs(fixedNow.Add(-30 * time.Minute)).
		WillReturnRows(addTaskRow(taskRows(), stale))

	tasks, err := s.FindStale(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, stale.ID, tasks[0].ID)
}
