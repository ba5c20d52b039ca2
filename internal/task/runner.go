package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// MaxConcurrentRuns bounds how many tasks execute at once. Submitted
	// tasks beyond the limit wait for a slot on their own goroutine.
	MaxConcurrentRuns int64
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		MaxConcurrentRuns: 4,
	}
}

// TaskRunner executes each submitted task on its own goroutine. Submit never
// waits for the task; Stop cancels running tasks and waits for them to
// record their final status.
type TaskRunner struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
	sem        *semaphore.Weighted
	wg         sync.WaitGroup
	mu         sync.Mutex
	stopped    bool
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.MaxConcurrentRuns <= 0 {
		config.MaxConcurrentRuns = DefaultTaskRunnerConfig().MaxConcurrentRuns
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "task_runner")

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		ctx:        ctx,
		cancelFunc: cancel,
		sem:        semaphore.NewWeighted(config.MaxConcurrentRuns),
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit schedules task for execution and returns immediately.
// Returns ErrRunnerStopped once Stop has been called.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	r.wg.Add(1)
	go r.execute(task)

	r.logger.Debug("task submitted", "task_id", task.ID(), "task_type", task.Type())
	return nil
}

// execute waits for a run slot and runs task. A task whose slot is never
// granted because the runner is stopping still executes on the cancelled
// context so that it records its interruption.
func (r *TaskRunner) execute(task Task) {
	defer r.wg.Done()

	logger := r.logger.With("task_id", task.ID(), "task_type", task.Type())

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		logger.Warn("runner stopping before task started", "error", err)
	} else {
		defer r.sem.Release(1)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("task panicked", "panic", p)
			r.errHandler(task, fmt.Errorf("%w: %v", ErrUnexpected, p))
		}
	}()

	logger.Info("processing task")
	if err := task.Execute(r.ctx); err != nil {
		r.errHandler(task, err)
		return
	}
	logger.Info("task finished")
}

// Stop rejects new submissions, cancels running tasks, and waits for them
// to return or for ctx to expire.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}
