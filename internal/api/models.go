package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/deckgen-api/internal/domain"
)

// SubmitDeckRequest holds the non-file fields of a deck submission form.
type SubmitDeckRequest struct {
	Title string `validate:"max=200"`
}

// SubmitDeckResponse is returned when a submission is accepted.
type SubmitDeckResponse struct {
	TaskID uuid.UUID         `json:"task_id"`
	Status domain.TaskStatus `json:"status"`
}

// TaskResponse is the externally visible projection of a deck task.
// ResultURL and ErrorMessage are null unless the task is completed or failed.
type TaskResponse struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Status       domain.TaskStatus `json:"status"`
	Stage        domain.Stage      `json:"stage,omitempty"`
	Progress     int               `json:"progress"`
	ResultURL    *string           `json:"result_url"`
	ErrorMessage *string           `json:"error_message"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TaskListResponse wraps a requester's tasks, newest first.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

func taskToResponse(task *domain.DeckTask) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID,
		Title:     task.Title,
		Status:    task.Status,
		Stage:     task.Stage,
		Progress:  task.Progress,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	if task.ResultURL != "" {
		url := task.ResultURL
		resp.ResultURL = &url
	}
	if task.ErrorMessage != "" {
		msg := task.ErrorMessage
		resp.ErrorMessage = &msg
	}
	return resp
}

func tasksToResponse(tasks []*domain.DeckTask) TaskListResponse {
	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, task := range tasks {
		resp.Tasks = append(resp.Tasks, taskToResponse(task))
	}
	return resp
}
