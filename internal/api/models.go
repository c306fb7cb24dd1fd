package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/service"
)

// CreateTaskRequest is the payload of POST /api/tasks.
type CreateTaskRequest struct {
	Title            string `json:"title"             validate:"required,max=500"`
	Description      string `json:"description"       validate:"max=5000"`
	EstimatedMinutes *int   `json:"estimated_minutes" validate:"omitempty,min=0,max=1440"`
}

func (r CreateTaskRequest) toInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:            r.Title,
		Description:      r.Description,
		EstimatedMinutes: r.EstimatedMinutes,
	}
}

// UpdateTaskRequest is the payload of PUT /api/tasks/{id}. Omitted fields
// are left unchanged.
type UpdateTaskRequest struct {
	Title            *string `json:"title"             validate:"omitempty,min=1,max=500"`
	Description      *string `json:"description"       validate:"omitempty,max=5000"`
	Status           *string `json:"status"            validate:"omitempty,oneof=Todo 'In Progress' Done"`
	EstimatedMinutes *int    `json:"estimated_minutes" validate:"omitempty,min=0,max=1440"`
}

func (r UpdateTaskRequest) toInput() service.UpdateTaskInput {
	in := service.UpdateTaskInput{
		Title:            r.Title,
		Description:      r.Description,
		EstimatedMinutes: r.EstimatedMinutes,
	}
	if r.Status != nil {
		status := domain.TaskStatus(*r.Status)
		in.Status = &status
	}
	return in
}

// TaskResponse is a task as returned by the API.
type TaskResponse struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	EstimatedMinutes *int      `json:"estimated_minutes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Status:           string(t.Status),
		EstimatedMinutes: t.EstimatedMinutes,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// PlanResponse is a daily plan as returned by the API.
type PlanResponse struct {
	ID            uuid.UUID `json:"id"`
	Date          string    `json:"date"`
	Plan          string    `json:"plan"`
	IsPlaceholder bool      `json:"is_placeholder"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func planToResponse(p *domain.DailyPlan) PlanResponse {
	return PlanResponse{
		ID:            p.ID,
		Date:          p.Date.Format(domain.PlanDateLayout),
		Plan:          p.Plan,
		IsPlaceholder: p.IsPlaceholder(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// RegenerateResponse acknowledges POST /api/plans/regenerate.
type RegenerateResponse struct {
	Status string `json:"status"`
}

// SuggestionRequest is the payload of POST /api/suggestions.
type SuggestionRequest struct {
	Title string `json:"title" validate:"required,max=500"`
}

// StreamStarted is the first stream event; the plan record already holds
// the placeholder.
type StreamStarted struct {
	PlanID uuid.UUID `json:"plan_id"`
}

// StreamFragment carries one committed fragment.
type StreamFragment struct {
	Text string `json:"text"`
}

// StreamError terminates a stream that failed.
type StreamError struct {
	Error string `json:"error"`
}

// StreamMessage is the envelope of WebSocket stream messages.
type StreamMessage struct {
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	PlanID *uuid.UUID `json:"plan_id,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// WebSocket and SSE event names.
const (
	streamEventStarted  = "started"
	streamEventFragment = "fragment"
	streamEventDone     = "done"
	streamEventError    = "error"
)
