package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T) *DeckTask {
	t.Helper()
	task, err := NewDeckTask(uuid.New(), "Q3 Review", "Untitled Deck")
	require.NoError(t, err)
	return task
}

func TestNewDeckTask(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("valid task", func(t *testing.T) {
		task, err := NewDeckTask(ownerID, "Q3 Review", "Untitled Deck")
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, ownerID, task.OwnerID)
		assert.Equal(t, "Q3 Review", task.Title)
		assert.Equal(t, TaskStatusPending, task.Status)
		assert.Equal(t, 0, task.Progress)
		assert.Empty(t, task.ResultURL)
		assert.Empty(t, task.ErrorMessage)
		assert.False(t, task.CreatedAt.IsZero())
		assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	})

	t.Run("empty title uses default", func(t *testing.T) {
		task, err := NewDeckTask(ownerID, "   ", "Untitled Deck")
		require.NoError(t, err)
		assert.Equal(t, "Untitled Deck", task.Title)
	})

	t.Run("ids are never reused", func(t *testing.T) {
		a, err := NewDeckTask(ownerID, "a", "d")
		require.NoError(t, err)
		b, err := NewDeckTask(ownerID, "a", "d")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("missing owner", func(t *testing.T) {
		_, err := NewDeckTask(uuid.Nil, "title", "d")
		assert.ErrorIs(t, err, ErrEmptyOwnerID)
	})

	t.Run("title too long", func(t *testing.T) {
		_, err := NewDeckTask(ownerID, strings.Repeat("x", MaxTitleLength+1), "d")
		assert.ErrorIs(t, err, ErrTitleTooLong)
	})

	t.Run("empty title and empty default", func(t *testing.T) {
		_, err := NewDeckTask(ownerID, "", "")
		assert.ErrorIs(t, err, ErrEmptyTitle)
	})
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskStatusPending, TaskStatusProcessing, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusPending, TaskStatusCompleted, false},
		{TaskStatusProcessing, TaskStatusCompleted, true},
		{TaskStatusProcessing, TaskStatusFailed, true},
		{TaskStatusProcessing, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusFailed, TaskStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestDeckTask_Apply(t *testing.T) {
	t.Parallel()

	now := time.Now().Add(time.Minute)

	t.Run("full successful lifecycle", func(t *testing.T) {
		task := newTestTask(t)

		require.NoError(t, task.Apply(ProcessingUpdate(10), now))
		assert.Equal(t, TaskStatusProcessing, task.Status)
		assert.Equal(t, 10, task.Progress)

		require.NoError(t, task.Apply(ProgressUpdate(StageCreateWorkspace, 20), now))
		assert.Equal(t, StageCreateWorkspace, task.Stage)

		require.NoError(t, task.Apply(CompletedUpdate("https://cdn.example/deck.pdf"), now))
		assert.Equal(t, TaskStatusCompleted, task.Status)
		assert.Equal(t, 100, task.Progress)
		assert.Equal(t, "https://cdn.example/deck.pdf", task.ResultURL)
		assert.Empty(t, task.ErrorMessage)
		assert.Equal(t, now.UTC(), task.UpdatedAt)
	})

	t.Run("progress never decreases", func(t *testing.T) {
		task := newTestTask(t)
		require.NoError(t, task.Apply(ProcessingUpdate(10), now))
		require.NoError(t, task.Apply(ProgressUpdate(StageRequestGeneration, 60), now))
		require.NoError(t, task.Apply(ProgressUpdate(StageStageSources, 30), now))
		assert.Equal(t, 60, task.Progress)
	})

	t.Run("failure freezes progress and records message", func(t *testing.T) {
		task := newTestTask(t)
		require.NoError(t, task.Apply(ProcessingUpdate(10), now))
		require.NoError(t, task.Apply(ProgressUpdate(StageAwaitGeneration, 70), now))
		require.NoError(t, task.Apply(FailedUpdate(StageAwaitGeneration, "generation timeout"), now))

		assert.Equal(t, TaskStatusFailed, task.Status)
		assert.Equal(t, 70, task.Progress)
		assert.Equal(t, StageAwaitGeneration, task.Stage)
		assert.Equal(t, "generation timeout", task.ErrorMessage)
		assert.Empty(t, task.ResultURL)
	})

	t.Run("terminal status cannot be left", func(t *testing.T) {
		task := newTestTask(t)
		require.NoError(t, task.Apply(FailedUpdate("", "boom"), now))

		err := task.Apply(ProcessingUpdate(10), now)
		assert.ErrorIs(t, err, ErrTaskFinalized)

		err = task.Apply(ProgressUpdate(StageFinalize, 95), now)
		assert.ErrorIs(t, err, ErrTaskFinalized)
		assert.Equal(t, TaskStatusFailed, task.Status)
	})

	t.Run("reapplying the same terminal update is a no-op", func(t *testing.T) {
		task := newTestTask(t)
		require.NoError(t, task.Apply(ProcessingUpdate(10), now))
		require.NoError(t, task.Apply(CompletedUpdate("/generated/x.pdf"), now))
		require.NoError(t, task.Apply(CompletedUpdate("/generated/x.pdf"), now.Add(time.Hour)))
		assert.Equal(t, now.UTC(), task.UpdatedAt)
	})

	t.Run("pending cannot complete directly", func(t *testing.T) {
		task := newTestTask(t)
		err := task.Apply(CompletedUpdate("/generated/x.pdf"), now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, TaskStatusPending, task.Status)
	})

	t.Run("completion requires a result URL", func(t *testing.T) {
		task := newTestTask(t)
		require.NoError(t, task.Apply(ProcessingUpdate(10), now))
		err := task.Apply(CompletedUpdate(""), now)
		assert.ErrorIs(t, err, ErrMissingResultURL)
		assert.Equal(t, TaskStatusProcessing, task.Status)
	})

	t.Run("failure requires a message", func(t *testing.T) {
		task := newTestTask(t)
		err := task.Apply(FailedUpdate(StageFinalize, ""), now)
		assert.ErrorIs(t, err, ErrMissingErrorMessage)
	})

	t.Run("progress out of range", func(t *testing.T) {
		task := newTestTask(t)
		err := task.Apply(ProgressUpdate(StageFinalize, 101), now)
		assert.ErrorIs(t, err, ErrInvalidProgress)
	})
}
