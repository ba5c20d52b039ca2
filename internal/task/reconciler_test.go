package task

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/mocks"
	"github.com/phrazzld/deckgen-api/internal/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTask(t *testing.T, s *mocks.MockTaskStore, status domain.TaskStatus, updatedAgo time.Duration) *domain.DeckTask {
	t.Helper()

	record, err := domain.NewDeckTask(uuid.New(), "Deck", "Untitled Deck")
	require.NoError(t, err)

	record.Status = status
	switch status {
	case domain.TaskStatusProcessing:
		record.Stage = domain.StageAwaitGeneration
		record.Progress = 70
	case domain.TaskStatusCompleted:
		record.Progress = 100
		record.ResultURL = "/generated/x.pdf"
	}
	record.UpdatedAt = time.Now().Add(-updatedAgo).UTC()
	s.Put(record)
	return record
}

func TestReconciler_ReconcileOnce(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewMockTaskStore()
	stagingBase := t.TempDir()

	stalePending := seedTask(t, taskStore, domain.TaskStatusPending, 2*time.Hour)
	staleProcessing := seedTask(t, taskStore, domain.TaskStatusProcessing, time.Hour)
	active := seedTask(t, taskStore, domain.TaskStatusProcessing, time.Minute)
	done := seedTask(t, taskStore, domain.TaskStatusCompleted, 3*time.Hour)

	leftover, err := staging.New(stagingBase, staleProcessing.ID)
	require.NoError(t, err)

	reconciler, err := NewReconciler(taskStore, ReconcilerConfig{
		StuckTaskAge:   30 * time.Minute,
		CheckInterval:  time.Minute,
		StagingBaseDir: stagingBase,
	}, testLogger())
	require.NoError(t, err)

	failed, err := reconciler.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, failed)

	for _, id := range []uuid.UUID{stalePending.ID, staleProcessing.ID} {
		record, err := taskStore.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, record.Status)
		assert.True(t, strings.HasPrefix(record.ErrorMessage, "interrupted"), record.ErrorMessage)
		assert.Empty(t, record.ResultURL)
	}

	record, err := taskStore.GetByID(context.Background(), staleProcessing.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, record.Progress, "progress is frozen")
	assert.Equal(t, domain.StageAwaitGeneration, record.Stage)
	assert.NoDirExists(t, leftover.Dir())

	record, err = taskStore.GetByID(context.Background(), active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, record.Status)

	record, err = taskStore.GetByID(context.Background(), done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, record.Status)

	failed, err = reconciler.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, failed, "reconciling is idempotent")
}

func TestReconciler_StoreError(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewMockTaskStore()
	taskStore.FindStaleErr = errors.New("connection refused")

	reconciler, err := NewReconciler(taskStore, ReconcilerConfig{StuckTaskAge: time.Minute}, testLogger())
	require.NoError(t, err)

	_, err = reconciler.ReconcileOnce(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestReconciler_RunReconcilesAtStartup(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewMockTaskStore()
	stale := seedTask(t, taskStore, domain.TaskStatusProcessing, time.Hour)

	reconciler, err := NewReconciler(taskStore, ReconcilerConfig{
		StuckTaskAge:  time.Minute,
		CheckInterval: time.Hour,
	}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reconciler.Run(ctx) }()

	require.Eventually(t, func() bool {
		record, err := taskStore.GetByID(context.Background(), stale.ID)
		return err == nil && record.Status == domain.TaskStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestNewReconciler_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewReconciler(nil, ReconcilerConfig{StuckTaskAge: time.Minute}, testLogger())
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = NewReconciler(mocks.NewMockTaskStore(), ReconcilerConfig{}, testLogger())
	assert.Error(t, err)

	_, err = NewReconciler(mocks.NewMockTaskStore(), ReconcilerConfig{StuckTaskAge: time.Minute}, nil)
	assert.ErrorIs(t, err, ErrNilLogger)
}
