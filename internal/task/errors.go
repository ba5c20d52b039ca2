package task

import (
	"errors"
	"fmt"

	"github.com/phrazzld/deckgen-api/internal/domain"
)

// Common errors
var (
	ErrNilStore       = errors.New("task store cannot be nil")
	ErrNilConnector   = errors.New("generation connector cannot be nil")
	ErrNilPublisher   = errors.New("publisher cannot be nil")
	ErrNilInstruction = errors.New("instruction builder cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
	ErrEmptyTaskID    = errors.New("task ID cannot be empty")
	ErrNoStagingDir   = errors.New("staging directory cannot be empty")
	ErrNoSources      = errors.New("no source files to process")

	// ErrPersistence is returned when the task record could not be written.
	ErrPersistence = errors.New("task record write failed")

	// ErrStageTimeout is returned when a stage overran its timeout and the
	// client did not report it.
	ErrStageTimeout = errors.New("stage timeout")

	// ErrUnexpected wraps a panic recovered inside a run.
	ErrUnexpected = errors.New("unexpected failure")

	// ErrRunnerStopped is returned by Submit once the runner is shutting down.
	ErrRunnerStopped = errors.New("task runner is stopped")
)

// InterruptedByShutdown is the failure message recorded for runs cut short
// by process shutdown.
const InterruptedByShutdown = "interrupted by shutdown"

// StageError records which stage of a run failed.
type StageError struct {
	Stage domain.Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// stageOf returns the failed stage, or "" when err carries none.
func stageOf(err error) domain.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
