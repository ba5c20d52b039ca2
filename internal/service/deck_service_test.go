package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/events"
	"github.com/phrazzld/deckgen-api/internal/generation"
	"github.com/phrazzld/deckgen-api/internal/mocks"
	"github.com/phrazzld/deckgen-api/internal/staging"
	"github.com/phrazzld/deckgen-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func uploads(names ...string) []Upload {
	result := make([]Upload, 0, len(names))
	for _, name := range names {
		result = append(result, Upload{Filename: name, Content: strings.NewReader("content of " + name)})
	}
	return result
}

// capturingEmitter records emitted events and returns Err.
type capturingEmitter struct {
	Events []*events.DeckRequested
	Err    error
}

func (e *capturingEmitter) EmitEvent(ctx context.Context, event *events.DeckRequested) error {
	e.Events = append(e.Events, event)
	return e.Err
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func newTestService(t *testing.T, taskStore *mocks.MockTaskStore, emitter events.EventEmitter) (DeckService, string) {
	t.Helper()
	base := t.TempDir()
	svc, err := NewDeckService(taskStore, emitter, DeckServiceConfig{
		DefaultTitle:   "Untitled Deck",
		StagingBaseDir: base,
		MaxFiles:       5,
	}, testLogger())
	require.NoError(t, err)
	return svc, base
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewDeckService(t *testing.T) {
	t.Parallel()

	_, err := NewDeckService(nil, &capturingEmitter{}, DeckServiceConfig{}, testLogger())
	assert.Error(t, err)

	_, err = NewDeckService(mocks.NewMockTaskStore(), nil, DeckServiceConfig{}, testLogger())
	assert.Error(t, err)

	svc, err := NewDeckService(mocks.NewMockTaskStore(), &capturingEmitter{}, DeckServiceConfig{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestDeckService_SubmitDeck(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	t.Run("records pending task and emits request", func(t *testing.T) {
		taskStore := mocks.NewMockTaskStore()
		emitter := &capturingEmitter{}
		svc, _ := newTestService(t, taskStore, emitter)

		record, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", uploads("a.pdf", "b.docx", "c.txt"))
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusPending, record.Status)
		assert.Equal(t, 0, record.Progress)
		assert.Equal(t, ownerID, record.OwnerID)

		stored, err := taskStore.GetByID(context.Background(), record.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, stored.Status)

		require.Len(t, emitter.Events, 1)
		payload := emitter.Events[0]
		assert.Equal(t, record.ID, payload.TaskID)
		assert.Equal(t, "Q3 Review", payload.Title)
		require.Len(t, payload.Inputs, 3)
		assert.True(t, strings.HasSuffix(payload.Inputs[0], "01-a.pdf"))
		assert.True(t, strings.HasSuffix(payload.Inputs[2], "03-c.txt"))
		for _, in := range payload.Inputs {
			assert.FileExists(t, in)
		}
	})

	t.Run("default title", func(t *testing.T) {
		svc, _ := newTestService(t, mocks.NewMockTaskStore(), &capturingEmitter{})
		record, err := svc.SubmitDeck(context.Background(), ownerID, "  ", uploads("a.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "Untitled Deck", record.Title)
	})

	t.Run("no files", func(t *testing.T) {
		svc, base := newTestService(t, mocks.NewMockTaskStore(), &capturingEmitter{})
		_, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", nil)
		assert.ErrorIs(t, err, ErrNoSources)
		assertDirEmpty(t, base)
	})

	t.Run("too many files", func(t *testing.T) {
		svc, _ := newTestService(t, mocks.NewMockTaskStore(), &capturingEmitter{})
		_, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review",
			uploads("1", "2", "3", "4", "5", "6"))
		assert.ErrorIs(t, err, ErrTooManySources)
	})

	t.Run("title too long", func(t *testing.T) {
		svc, _ := newTestService(t, mocks.NewMockTaskStore(), &capturingEmitter{})
		_, err := svc.SubmitDeck(context.Background(), ownerID, strings.Repeat("x", domain.MaxTitleLength+1),
			uploads("a.pdf"))
		assert.ErrorIs(t, err, domain.ErrTitleTooLong)
	})

	t.Run("upload read failure removes staging", func(t *testing.T) {
		taskStore := mocks.NewMockTaskStore()
		svc, base := newTestService(t, taskStore, &capturingEmitter{})

		_, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", []Upload{
			{Filename: "a.pdf", Content: strings.NewReader("ok")},
			{Filename: "b.pdf", Content: failingReader{}},
		})
		assert.ErrorIs(t, err, staging.ErrLocalIO)
		assertDirEmpty(t, base)

		records, err := taskStore.ListByOwner(context.Background(), ownerID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("store failure removes staging", func(t *testing.T) {
		taskStore := mocks.NewMockTaskStore()
		taskStore.CreateErr = errors.New("connection refused")
		emitter := &capturingEmitter{}
		svc, base := newTestService(t, taskStore, emitter)

		_, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", uploads("a.pdf"))
		var svcErr *DeckServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "submit_deck", svcErr.Operation)
		assertDirEmpty(t, base)
		assert.Empty(t, emitter.Events)
	})

	t.Run("scheduling failure marks task failed", func(t *testing.T) {
		taskStore := mocks.NewMockTaskStore()
		emitter := events.NewInMemoryEventEmitter(testLogger())
		svc, base := newTestService(t, taskStore, emitter)

		_, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", uploads("a.pdf"))
		assert.ErrorIs(t, err, ErrSchedulingFailed)
		assert.ErrorIs(t, err, events.ErrNoHandlers)
		assertDirEmpty(t, base)

		records, err := taskStore.ListByOwner(context.Background(), ownerID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, domain.TaskStatusFailed, records[0].Status)
		assert.NotEmpty(t, records[0].ErrorMessage)
		assert.Empty(t, records[0].ResultURL)
	})
}

func TestDeckService_GetTask(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewMockTaskStore()
	svc, _ := newTestService(t, taskStore, &capturingEmitter{})
	ownerID := uuid.New()

	record, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", uploads("a.pdf"))
	require.NoError(t, err)

	got, err := svc.GetTask(context.Background(), record.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)

	_, err = svc.GetTask(context.Background(), record.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotOwned)

	_, err = svc.GetTask(context.Background(), uuid.New(), ownerID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeckService_ListTasksIsolatesOwners(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewMockTaskStore()
	svc, _ := newTestService(t, taskStore, &capturingEmitter{})
	ownerX, ownerY := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, err := svc.SubmitDeck(context.Background(), ownerX, "X deck", uploads("a.pdf"))
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	_, err := svc.SubmitDeck(context.Background(), ownerY, "Y deck", uploads("a.pdf"))
	require.NoError(t, err)

	xs, err := svc.ListTasks(context.Background(), ownerX)
	require.NoError(t, err)
	require.Len(t, xs, 3)
	for i, record := range xs {
		assert.Equal(t, ownerX, record.OwnerID)
		if i > 0 {
			assert.False(t, record.CreatedAt.After(xs[i-1].CreatedAt), "newest first")
		}
	}

	ys, err := svc.ListTasks(context.Background(), ownerY)
	require.NoError(t, err)
	require.Len(t, ys, 1)
	assert.Equal(t, ownerY, ys[0].OwnerID)

	none, err := svc.ListTasks(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeckService_EndToEnd(t *testing.T) {
	t.Parallel()

	taskStore := mocks.NewMockTaskStore()
	connector := &mocks.FakeConnector{Template: mocks.FakeClient{WorkspaceID: "ws-1"}}
	builder, err := generation.NewInstructionBuilder("", "zh_Hans", "")
	require.NoError(t, err)

	factory, err := task.NewDeckGenerationTaskFactory(taskStore, connector, &mocks.MockPublisher{}, builder,
		task.DeckGenerationConfig{
			CreateWorkspaceTimeout: time.Second,
			SourceWaitTimeout:      time.Second,
			RequestTimeout:         time.Second,
			AwaitTimeout:           time.Second,
			DownloadTimeout:        time.Second,
			StageGracePeriod:       100 * time.Millisecond,
			TerminalWriteTimeout:   time.Second,
		}, testLogger())
	require.NoError(t, err)

	runner := task.NewTaskRunner(task.DefaultTaskRunnerConfig(), testLogger())
	defer func() { _ = runner.Stop(context.Background()) }()

	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, runner, testLogger()))

	svc, base := newTestService(t, taskStore, emitter)
	ownerID := uuid.New()

	record, err := svc.SubmitDeck(context.Background(), ownerID, "Q3 Review", uploads("a.pdf", "b.pdf", "c.pdf"))
	require.NoError(t, err)

	var final *domain.DeckTask
	require.Eventually(t, func() bool {
		final, err = svc.GetTask(context.Background(), record.ID, ownerID)
		return err == nil && final.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.TaskStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.NotEmpty(t, final.ResultURL)
	assert.Empty(t, final.ErrorMessage)
	assertDirEmpty(t, base)
}
