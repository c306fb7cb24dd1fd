package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/events"
)

// Submitter accepts jobs for background execution. *Runner implements it.
type Submitter interface {
	Submit(ctx context.Context, job Job) error
}

// EventHandler turns plan_regeneration events into jobs and submits them.
type EventHandler struct {
	factory *PlanRegenerationFactory
	runner  Submitter
	logger  *slog.Logger
}

// NewEventHandler creates an EventHandler
func NewEventHandler(factory *PlanRegenerationFactory, runner Submitter, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With("component", "job_event_handler"),
	}
}

// HandleEvent implements events.EventHandler. Events of other types are ignored.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.JobRequestEvent) error {
	if event.Type != TypePlanRegeneration {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload PlanRegenerationPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.OwnerID == uuid.Nil {
		return ErrEmptyOwnerID
	}

	job, err := h.factory.CreateJob(payload.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	if err := h.runner.Submit(ctx, job); err != nil {
		h.logger.Error("failed to submit job",
			"error", err,
			"job_id", job.ID(),
			"owner_id", payload.OwnerID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit job: %w", err)
	}

	h.logger.Debug("plan regeneration job submitted",
		"job_id", job.ID(),
		"owner_id", payload.OwnerID,
		"event_id", event.ID)
	return nil
}

var _ events.EventHandler = (*EventHandler)(nil)
