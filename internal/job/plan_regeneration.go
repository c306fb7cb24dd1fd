package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
)

// TypePlanRegeneration is the job type that rebuilds an owner's plan for today.
const TypePlanRegeneration = "plan_regeneration"

// Common errors
var (
	ErrNilRegenerator = errors.New("plan regenerator cannot be nil")
	ErrEmptyOwnerID   = errors.New("owner ID cannot be empty")
)

// PlanRegenerator runs one plan regeneration for an owner and calendar date.
// *regeneration.Orchestrator implements it.
type PlanRegenerator interface {
	RegeneratePlan(ctx context.Context, ownerID uuid.UUID, date time.Time) error
}

// PlanRegenerationPayload is the serialized data of a plan regeneration job.
type PlanRegenerationPayload struct {
	OwnerID uuid.UUID `json:"owner_id"`
}

// PlanRegenerationJob regenerates an owner's plan for the date that is
// "today" when the job executes, not when it was requested.
type PlanRegenerationJob struct {
	id          uuid.UUID
	ownerID     uuid.UUID
	status      JobStatus
	regenerator PlanRegenerator
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// ID returns the job's unique identifier
func (j *PlanRegenerationJob) ID() uuid.UUID { return j.id }

// Type returns TypePlanRegeneration
func (j *PlanRegenerationJob) Type() string { return TypePlanRegeneration }

// OwnerID returns the owner whose plan is regenerated
func (j *PlanRegenerationJob) OwnerID() uuid.UUID { return j.ownerID }

// Status returns the status the job was created or recovered with
func (j *PlanRegenerationJob) Status() JobStatus { return j.status }

// Payload returns the JSON-encoded PlanRegenerationPayload
func (j *PlanRegenerationJob) Payload() []byte {
	data, err := json.Marshal(PlanRegenerationPayload{OwnerID: j.ownerID})
	if err != nil {
		j.logger.Error("failed to marshal job payload", "error", err)
		return nil
	}
	return data
}

// Execute runs the regeneration for today's date in the configured location.
func (j *PlanRegenerationJob) Execute(ctx context.Context) error {
	date := domain.PlanDate(j.now().In(j.location))
	log := j.logger.With("plan_date", date.Format(domain.PlanDateLayout))

	log.Info("regenerating daily plan")
	if err := j.regenerator.RegeneratePlan(ctx, j.ownerID, date); err != nil {
		return fmt.Errorf("plan regeneration for owner %s failed: %w", j.ownerID, err)
	}
	return nil
}

var _ Job = (*PlanRegenerationJob)(nil)

// PlanRegenerationFactory creates PlanRegenerationJob instances, both new
// ones and ones rebuilt from stored records.
type PlanRegenerationFactory struct {
	regenerator PlanRegenerator
	location    *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

// NewPlanRegenerationFactory creates a factory. A nil location means UTC.
func NewPlanRegenerationFactory(
	regenerator PlanRegenerator,
	location *time.Location,
	logger *slog.Logger,
) (*PlanRegenerationFactory, error) {
	if regenerator == nil {
		return nil, ErrNilRegenerator
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanRegenerationFactory{
		regenerator: regenerator,
		location:    location,
		now:         time.Now,
		logger:      logger.With("component", "plan_regeneration_factory"),
	}, nil
}

// Type implements Factory
func (f *PlanRegenerationFactory) Type() string { return TypePlanRegeneration }

// CreateJob creates a new pending job for ownerID
func (f *PlanRegenerationFactory) CreateJob(ownerID uuid.UUID) (*PlanRegenerationJob, error) {
	return f.build(uuid.New(), ownerID, StatusPending)
}

// FromRecord implements Factory
func (f *PlanRegenerationFactory) FromRecord(rec Record) (Job, error) {
	var payload PlanRegenerationPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return f.build(rec.ID, payload.OwnerID, rec.Status)
}

func (f *PlanRegenerationFactory) build(id, ownerID uuid.UUID, status JobStatus) (*PlanRegenerationJob, error) {
	if ownerID == uuid.Nil {
		return nil, ErrEmptyOwnerID
	}
	return &PlanRegenerationJob{
		id:          id,
		ownerID:     ownerID,
		status:      status,
		regenerator: f.regenerator,
		location:    f.location,
		now:         f.now,
		logger: f.logger.With(
			"job_id", id,
			"job_type", TypePlanRegeneration,
			"owner_id", ownerID),
	}, nil
}

var _ Factory = (*PlanRegenerationFactory)(nil)
