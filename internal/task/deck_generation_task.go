package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/config"
	"github.com/phrazzld/deckgen-api/internal/domain"
	"github.com/phrazzld/deckgen-api/internal/generation"
	"github.com/phrazzld/deckgen-api/internal/publish"
	"github.com/phrazzld/deckgen-api/internal/redact"
	"github.com/phrazzld/deckgen-api/internal/staging"
	"github.com/phrazzld/deckgen-api/internal/store"
)

// Progress checkpoints persisted as a run advances. Source uploads move
// progress linearly from progressWorkspace to progressWorkspace+progressSourcesSpan.
const (
	progressStarted     = 10
	progressWorkspace   = 20
	progressSourcesSpan = 30
	progressRequested   = 60
	progressAwaiting    = 70
	progressDownloaded  = 85
	progressPublished   = 95
)

// terminalWriteAttempts is how many times the final status write is tried.
const terminalWriteAttempts = 2

// DeckGenerationPayload is the serialized data carried by a deck generation
// request event.
type DeckGenerationPayload struct {
	TaskID     uuid.UUID `json:"task_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Title      string    `json:"title"`
	StagingDir string    `json:"staging_dir"`
	Inputs     []string  `json:"inputs"`
}

// Validate checks that the payload identifies a task and its staged inputs.
func (p DeckGenerationPayload) Validate() error {
	if p.TaskID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if p.StagingDir == "" {
		return ErrNoStagingDir
	}
	return nil
}

// DeckGenerationConfig bounds each remote stage of a run.
type DeckGenerationConfig struct {
	CreateWorkspaceTimeout time.Duration
	SourceWaitTimeout      time.Duration
	RequestTimeout         time.Duration
	AwaitTimeout           time.Duration
	DownloadTimeout        time.Duration

	// StageGracePeriod is added to every stage timeout before the run stops
	// waiting on a client that does not enforce its own timeout.
	StageGracePeriod time.Duration

	// TerminalWriteTimeout bounds each attempt at the final status write.
	TerminalWriteTimeout time.Duration

	// RetainFailedDir keeps artifacts whose publication failed. Empty
	// disables retention.
	RetainFailedDir string
}

// NewDeckGenerationConfig collects run settings from application config.
func NewDeckGenerationConfig(
	gen config.GenerationConfig,
	tc config.TaskConfig,
	sc config.StagingConfig,
) DeckGenerationConfig {
	return DeckGenerationConfig{
		CreateWorkspaceTimeout: gen.CreateWorkspaceTimeout,
		SourceWaitTimeout:      gen.SourceWaitTimeout,
		RequestTimeout:         gen.RequestTimeout,
		AwaitTimeout:           gen.AwaitTimeout,
		DownloadTimeout:        gen.DownloadTimeout,
		StageGracePeriod:       5 * time.Second,
		TerminalWriteTimeout:   tc.TerminalWriteTimeout,
		RetainFailedDir:        sc.RetainFailedDir,
	}
}

// DeckGenerationTask runs one deck generation workflow for a persisted
// task record. It is the only writer of that record while it runs.
type DeckGenerationTask struct {
	payload      DeckGenerationPayload
	store        store.TaskStore
	connector    generation.Connector
	publisher    publish.Publisher
	instructions *generation.InstructionBuilder
	cfg          DeckGenerationConfig
	logger       *slog.Logger

	// started is set once a write has moved the record to processing.
	started bool
}

// Ensure DeckGenerationTask implements Task interface
var _ Task = (*DeckGenerationTask)(nil)

// ID returns the task record's identifier
func (t *DeckGenerationTask) ID() uuid.UUID {
	return t.payload.TaskID
}

// Type returns the task type identifier
func (t *DeckGenerationTask) Type() string {
	return TaskTypeDeckGeneration
}

// Execute runs every stage in order and then records the terminal status.
// The staging directory is removed and the client session closed before the
// terminal write, on every exit path. The returned error is the run's
// failure cause, joined with ErrPersistence when the terminal write failed.
func (t *DeckGenerationTask) Execute(ctx context.Context) error {
	t.logger.Info("starting deck generation run", "inputs", len(t.payload.Inputs))

	resultURL, runErr := t.run(ctx)
	if runErr == nil {
		if err := t.finish(ctx, domain.CompletedUpdate(resultURL)); err != nil {
			return err
		}
		t.logger.Info("deck generation completed", "result_url", resultURL)
		return nil
	}

	stage := stageOf(runErr)
	message := t.failureMessage(ctx, stage, runErr)
	t.logger.Error("deck generation failed", "stage", stage, "error", runErr)

	if err := t.finish(ctx, domain.FailedUpdate(stage, message)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// run executes the stages and returns the published locator.
func (t *DeckGenerationTask) run(ctx context.Context) (resultURL string, err error) {
	var stage domain.Stage
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic during deck generation",
				"stage", stage,
				"panic", r,
				"stack", string(debug.Stack()))
			resultURL = ""
			err = &StageError{Stage: stage, Err: fmt.Errorf("%w: %v", ErrUnexpected, r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		t.discardStaging()
		return "", err
	}

	ws, err := staging.Attach(t.payload.StagingDir, t.payload.Inputs)
	if err != nil {
		t.discardStaging()
		return "", &StageError{Stage: domain.StageStageSources, Err: err}
	}
	defer func() {
		if removeErr := ws.Remove(); removeErr != nil {
			t.logger.Error("failed to remove staging dir", "dir", ws.Dir(), "error", removeErr)
		}
	}()

	if err := t.reportProgress(ctx, domain.ProcessingUpdate(progressStarted)); err != nil {
		return "", err
	}

	stage = domain.StageCreateWorkspace
	client, err := t.connector.Connect(ctx)
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			t.logger.Warn("failed to close generation client", "error", closeErr)
		}
	}()

	workspaceID, err := callWithTimeout(ctx, t.cfg.CreateWorkspaceTimeout, t.cfg.StageGracePeriod,
		func(sctx context.Context) (string, error) {
			return client.CreateWorkspace(sctx, t.payload.Title, t.cfg.CreateWorkspaceTimeout)
		})
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}
	t.logger.Debug("workspace created", "workspace_id", workspaceID)
	if err := t.reportProgress(ctx, domain.ProgressUpdate(stage, progressWorkspace)); err != nil {
		return "", err
	}

	stage = domain.StageStageSources
	inputs := ws.Inputs()
	if len(inputs) == 0 {
		return "", &StageError{Stage: stage, Err: ErrNoSources}
	}
	for i, path := range inputs {
		err := runWithTimeout(ctx, t.cfg.SourceWaitTimeout, t.cfg.StageGracePeriod,
			func(sctx context.Context) error {
				return client.AddSource(sctx, workspaceID, path, true, t.cfg.SourceWaitTimeout)
			})
		if err != nil {
			return "", &StageError{Stage: stage, Err: fmt.Errorf("source %d of %d: %w", i+1, len(inputs), err)}
		}
		progress := progressWorkspace + progressSourcesSpan*(i+1)/len(inputs)
		if err := t.reportProgress(ctx, domain.ProgressUpdate(stage, progress)); err != nil {
			return "", err
		}
	}

	stage = domain.StageRequestGeneration
	instructions, err := t.instructions.Build(t.payload.Title)
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}
	job, err := callWithTimeout(ctx, t.cfg.RequestTimeout, t.cfg.StageGracePeriod,
		func(sctx context.Context) (generation.JobHandle, error) {
			return client.RequestArtifactGeneration(sctx, workspaceID, instructions, t.cfg.RequestTimeout)
		})
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}
	if err := t.reportProgress(ctx, domain.ProgressUpdate(stage, progressRequested)); err != nil {
		return "", err
	}

	// Progress for the wait is recorded before it starts; the wait can
	// dominate the run.
	stage = domain.StageAwaitGeneration
	if err := t.reportProgress(ctx, domain.ProgressUpdate(stage, progressAwaiting)); err != nil {
		return "", err
	}
	err = runWithTimeout(ctx, t.cfg.AwaitTimeout, t.cfg.StageGracePeriod,
		func(sctx context.Context) error {
			return client.AwaitArtifactCompletion(sctx, workspaceID, job, t.cfg.AwaitTimeout)
		})
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}

	stage = domain.StageDownloadArtifact
	err = runWithTimeout(ctx, t.cfg.DownloadTimeout, t.cfg.StageGracePeriod,
		func(sctx context.Context) error {
			return client.DownloadArtifact(sctx, workspaceID, job, ws.ArtifactPath(), t.cfg.DownloadTimeout)
		})
	if err != nil {
		return "", &StageError{Stage: stage, Err: err}
	}
	if err := t.reportProgress(ctx, domain.ProgressUpdate(stage, progressDownloaded)); err != nil {
		return "", err
	}

	stage = domain.StageFinalize
	resultURL, err = t.publisher.Publish(ctx, ws.ArtifactPath(), t.ID())
	if err != nil {
		if !errors.Is(err, publish.ErrPublicationFailed) {
			err = fmt.Errorf("%w: %w", publish.ErrPublicationFailed, err)
		}
		t.retainArtifact(ws)
		return "", &StageError{Stage: stage, Err: err}
	}
	if err := t.reportProgress(ctx, domain.ProgressUpdate(stage, progressPublished)); err != nil {
		return "", err
	}

	return resultURL, nil
}

// reportProgress persists an intermediate update. Write failures are logged
// and swallowed, except when the record was finalized elsewhere, which
// aborts the run.
func (t *DeckGenerationTask) reportProgress(ctx context.Context, update domain.TaskUpdate) error {
	if !t.started && update.Status == nil {
		status := domain.TaskStatusProcessing
		update.Status = &status
	}

	task, err := t.store.Update(ctx, t.ID(), update)
	if err != nil {
		if errors.Is(err, domain.ErrTaskFinalized) {
			t.logger.Warn("task was finalized while running, aborting", "error", err)
			return err
		}
		t.logger.Warn("failed to persist progress", "error", err)
		return nil
	}

	t.started = true
	t.logger.Debug("progress persisted", "stage", task.Stage, "progress", task.Progress)
	return nil
}

// finish writes the terminal status on a context detached from ctx's
// cancellation, retrying once. A completed run whose processing write never
// landed is moved to processing first.
func (t *DeckGenerationTask) finish(ctx context.Context, update domain.TaskUpdate) error {
	base := context.WithoutCancel(ctx)

	if !t.started && update.Status != nil && *update.Status == domain.TaskStatusCompleted {
		if err := t.writeWithRetry(base, domain.ProcessingUpdate(progressStarted)); err != nil {
			return err
		}
	}

	return t.writeWithRetry(base, update)
}

func (t *DeckGenerationTask) writeWithRetry(ctx context.Context, update domain.TaskUpdate) error {
	var lastErr error
	for attempt := 1; attempt <= terminalWriteAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, t.cfg.TerminalWriteTimeout)
		_, err := t.store.Update(wctx, t.ID(), update)
		cancel()
		if err == nil {
			t.started = true
			return nil
		}

		lastErr = err
		if errors.Is(err, domain.ErrTaskFinalized) || store.IsNotFoundError(err) {
			break
		}
		t.logger.Warn("status write failed", "attempt", attempt, "error", err)
	}

	t.logger.Error("giving up on status write", "error", lastErr)
	return fmt.Errorf("%w: %w", ErrPersistence, lastErr)
}

// failureMessage renders the error recorded on the task. Local paths and
// credentials are scrubbed since the message is shown to the owner.
func (t *DeckGenerationTask) failureMessage(ctx context.Context, stage domain.Stage, err error) string {
	if ctx.Err() != nil {
		if stage == "" {
			return InterruptedByShutdown
		}
		return fmt.Sprintf("%s: %s", stage, InterruptedByShutdown)
	}
	return redact.Error(err)
}

func (t *DeckGenerationTask) retainArtifact(ws *staging.Workspace) {
	if t.cfg.RetainFailedDir == "" {
		return
	}
	dest, err := ws.Retain(t.cfg.RetainFailedDir, publish.ObjectName(t.ID()))
	if err != nil {
		t.logger.Error("failed to retain unpublished artifact", "error", err)
		return
	}
	t.logger.Warn("retained unpublished artifact", "path", dest)
}

func (t *DeckGenerationTask) discardStaging() {
	if err := staging.Discard(t.payload.StagingDir); err != nil {
		t.logger.Error("failed to discard staging dir", "dir", t.payload.StagingDir, "error", err)
	}
}

// callWithTimeout runs fn under timeout plus grace. fn runs on its own
// goroutine so a client that ignores its context cannot hold the stage past
// the deadline; the abandoned call ends when the deferred Close releases the
// session. A deadline the client did not report itself is wrapped with
// ErrStageTimeout.
func callWithTimeout[T any](
	ctx context.Context,
	timeout, grace time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout+grace)
	defer cancel()

	type result struct {
		v      T
		err    error
		panicV any
	}
	done := make(chan result, 1)
	go func() {
		var res result
		defer func() {
			if r := recover(); r != nil {
				res.panicV = r
			}
			done <- res
		}()
		res.v, res.err = fn(sctx)
	}()

	var res result
	select {
	case res = <-done:
		if res.panicV != nil {
			// Re-raised on the run's goroutine so run records it as a failure.
			panic(res.panicV)
		}
	case <-sctx.Done():
		res.err = sctx.Err()
	}

	if res.err != nil && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) &&
		!generation.IsTimeout(res.err) {
		res.err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, timeout, res.err)
	}
	return res.v, res.err
}

func runWithTimeout(ctx context.Context, timeout, grace time.Duration, fn func(context.Context) error) error {
	_, err := callWithTimeout(ctx, timeout, grace, func(sctx context.Context) (struct{}, error) {
		return struct{}{}, fn(sctx)
	})
	return err
}
