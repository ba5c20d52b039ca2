package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a deck generation task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition can leave this status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Stage names one discrete step of the generation workflow.
type Stage string

// Workflow stages in execution order
const (
	StageCreateWorkspace   Stage = "create_workspace"
	StageStageSources      Stage = "stage_sources"
	StageRequestGeneration Stage = "request_generation"
	StageAwaitGeneration   Stage = "await_generation"
	StageDownloadArtifact  Stage = "download_artifact"
	StageFinalize          Stage = "finalize"
)

// MaxTitleLength bounds the display title of a task.
const MaxTitleLength = 200

// Validation and transition errors for DeckTask
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyOwnerID        = errors.New("task owner ID cannot be empty")
	ErrEmptyTitle          = errors.New("task title cannot be empty")
	ErrTitleTooLong        = fmt.Errorf("task title cannot exceed %d characters", MaxTitleLength)
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidProgress     = errors.New("progress must be between 0 and 100")
	ErrInvalidTransition   = errors.New("invalid task status transition")
	ErrTaskFinalized       = errors.New("task has already reached a terminal status")
	ErrMissingResultURL    = errors.New("completed task requires a result URL")
	ErrMissingErrorMessage = errors.New("failed task requires an error message")
)

// DeckTask is the durable record of one submitted slide-deck generation job.
// OwnerID is a weak reference: it scopes visibility, not lifecycle.
type DeckTask struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	Stage        Stage      `json:"stage,omitempty"`
	Progress     int        `json:"progress"`
	ResultURL    string     `json:"result_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewDeckTask creates a pending task owned by ownerID.
// An empty title is replaced with defaultTitle.
func NewDeckTask(ownerID uuid.UUID, title, defaultTitle string) (*DeckTask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	now := time.Now().UTC()
	task := &DeckTask{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		Status:    TaskStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the record's fields and the terminal-field invariant:
// result_url only when completed, error_message only when failed.
func (t *DeckTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.OwnerID == uuid.Nil {
		return ErrEmptyOwnerID
	}

	if t.Title == "" {
		return ErrEmptyTitle
	}

	if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}

	if !t.Status.Valid() {
		return ErrInvalidTaskStatus
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidProgress
	}

	switch t.Status {
	case TaskStatusCompleted:
		if t.ResultURL == "" {
			return ErrMissingResultURL
		}
		if t.ErrorMessage != "" {
			return fmt.Errorf("%w: completed task cannot carry an error message", ErrValidation)
		}
	case TaskStatusFailed:
		if t.ErrorMessage == "" {
			return ErrMissingErrorMessage
		}
		if t.ResultURL != "" {
			return fmt.Errorf("%w: failed task cannot carry a result URL", ErrValidation)
		}
	default:
		if t.ResultURL != "" || t.ErrorMessage != "" {
			return fmt.Errorf("%w: non-terminal task cannot carry a result or error", ErrValidation)
		}
	}

	return nil
}

// TaskUpdate is a partial set of fields to apply to a DeckTask.
// Nil fields are left unchanged.
type TaskUpdate struct {
	Status       *TaskStatus
	Stage        *Stage
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
}

// ProgressUpdate builds an update that only moves progress and stage.
func ProgressUpdate(stage Stage, progress int) TaskUpdate {
	return TaskUpdate{Stage: &stage, Progress: &progress}
}

// ProcessingUpdate builds the update that starts a run.
func ProcessingUpdate(progress int) TaskUpdate {
	status := TaskStatusProcessing
	return TaskUpdate{Status: &status, Progress: &progress}
}

// CompletedUpdate builds the terminal success update.
func CompletedUpdate(resultURL string) TaskUpdate {
	status := TaskStatusCompleted
	stage := StageFinalize
	progress := 100
	return TaskUpdate{Status: &status, Stage: &stage, Progress: &progress, ResultURL: &resultURL}
}

// FailedUpdate builds the terminal failure update. Stage may be empty when
// the failure happened outside any stage.
func FailedUpdate(stage Stage, message string) TaskUpdate {
	status := TaskStatusFailed
	update := TaskUpdate{Status: &status, ErrorMessage: &message}
	if stage != "" {
		update.Stage = &stage
	}
	return update
}

// CanTransition reports whether from -> to follows
// pending -> processing -> {completed | failed}. Pending may also fail
// directly when a run never starts.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusProcessing || to == TaskStatusFailed
	case TaskStatusProcessing:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// Apply mutates the task with u, enforcing monotonic status transitions and
// non-decreasing progress. Re-applying the terminal update a task already
// holds is a no-op, which keeps terminal writes idempotent.
func (t *DeckTask) Apply(u TaskUpdate, now time.Time) error {
	if t.Status.IsTerminal() {
		if u.Status != nil && *u.Status == t.Status {
			return nil
		}
		return fmt.Errorf("%w: task %s is %s", ErrTaskFinalized, t.ID, t.Status)
	}

	next := *t

	if u.Status != nil && *u.Status != t.Status {
		if !u.Status.Valid() {
			return ErrInvalidTaskStatus
		}
		if !CanTransition(t.Status, *u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, *u.Status)
		}
		next.Status = *u.Status
	}

	if u.Stage != nil {
		next.Stage = *u.Stage
	}

	if u.Progress != nil {
		if *u.Progress < 0 || *u.Progress > 100 {
			return ErrInvalidProgress
		}
		if *u.Progress > next.Progress {
			next.Progress = *u.Progress
		}
	}

	switch next.Status {
	case TaskStatusCompleted:
		if u.ResultURL != nil {
			next.ResultURL = *u.ResultURL
		}
		next.ErrorMessage = ""
		next.Progress = 100
	case TaskStatusFailed:
		if u.ErrorMessage != nil {
			next.ErrorMessage = *u.ErrorMessage
		}
		next.ResultURL = ""
	default:
		next.ResultURL = ""
		next.ErrorMessage = ""
	}

	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = now.UTC()
	*t = next
	return nil
}
