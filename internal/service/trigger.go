package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/events"
	"github.com/phrazzld/dayplan-api/internal/job"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
)

// ChangeNotifier is told when an owner's tasks change.
type ChangeNotifier interface {
	OnTaskChanged(ctx context.Context, ownerID uuid.UUID)
}

// RegenerationTrigger schedules a background plan regeneration whenever an
// owner's tasks change. It never waits for generation and never fails the
// caller; problems are logged.
type RegenerationTrigger struct {
	emitter events.EventEmitter
	logger  *slog.Logger
}

var _ ChangeNotifier = (*RegenerationTrigger)(nil)

// NewRegenerationTrigger creates a RegenerationTrigger that publishes through emitter.
func NewRegenerationTrigger(emitter events.EventEmitter, logger *slog.Logger) (*RegenerationTrigger, error) {
	if emitter == nil {
		return nil, NewServiceError("regeneration_trigger", "create_service", errNilDependency("emitter"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RegenerationTrigger{
		emitter: emitter,
		logger:  logger.With("component", "regeneration_trigger"),
	}, nil
}

// OnTaskChanged requests a regeneration of ownerID's plan for today.
func (t *RegenerationTrigger) OnTaskChanged(ctx context.Context, ownerID uuid.UUID) {
	// Scheduling must survive the request that caused it.
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContextOrDefault(ctx, t.logger)

	event, err := events.NewJobRequestEvent(job.TypePlanRegeneration, job.PlanRegenerationPayload{OwnerID: ownerID})
	if err != nil {
		log.Error("failed to create plan regeneration event",
			"error", err,
			"owner_id", ownerID)
		return
	}

	if err := t.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to schedule plan regeneration",
			"error", err,
			"owner_id", ownerID,
			"event_id", event.ID)
		return
	}

	log.Debug("plan regeneration scheduled",
		"owner_id", ownerID,
		"event_id", event.ID)
}
