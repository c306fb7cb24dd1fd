package regeneration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/generation"
	"github.com/phrazzld/dayplan-api/internal/job"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/store"
)

// DefaultRunTimeout bounds a run when Config.RunTimeout is zero.
const DefaultRunTimeout = 120 * time.Second

// Listener observes a run as it progresses. Calls are made from the
// goroutine running Regenerate, so implementations should return quickly.
type Listener interface {
	// PlaceholderWritten is called once the placeholder is durable.
	PlaceholderWritten(planID uuid.UUID)

	// FragmentCommitted is called after each fragment has been committed.
	FragmentCommitted(fragment string)
}

// ListenerFunc adapts a fragment callback to a Listener.
type ListenerFunc func(fragment string)

// PlaceholderWritten implements Listener.
func (f ListenerFunc) PlaceholderWritten(uuid.UUID) {}

// FragmentCommitted implements Listener.
func (f ListenerFunc) FragmentCommitted(fragment string) { f(fragment) }

// Config tunes the Orchestrator.
type Config struct {
	// RunTimeout bounds everything after the placeholder write.
	RunTimeout time.Duration

	// Location decides which calendar date is today. Nil means UTC.
	Location *time.Location
}

// Result describes a finished run. It is returned alongside the error when
// the run fails.
type Result struct {
	RunID     uuid.UUID
	PlanID    uuid.UUID
	PlanDate  time.Time
	State     string
	Fragments int
	Text      string
}

// Orchestrator executes plan regeneration runs.
type Orchestrator struct {
	tasks     store.TaskStore
	plans     store.PlanStore
	composer  *generation.Composer
	generator generation.Generator
	locks     *keyedLock

	runTimeout time.Duration
	location   *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

var _ job.PlanRegenerator = (*Orchestrator)(nil)

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	tasks store.TaskStore,
	plans store.PlanStore,
	composer *generation.Composer,
	generator generation.Generator,
	cfg Config,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if tasks == nil {
		return nil, fmt.Errorf("tasks cannot be nil")
	}
	if plans == nil {
		return nil, fmt.Errorf("plans cannot be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if composer == nil {
		composer = generation.NewComposer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Orchestrator{
		tasks:      tasks,
		plans:      plans,
		composer:   composer,
		generator:  generator,
		locks:      newKeyedLock(),
		runTimeout: cfg.RunTimeout,
		location:   cfg.Location,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "plan_orchestrator")),
	}, nil
}

// Today returns the current calendar date in the configured location.
func (o *Orchestrator) Today() time.Time {
	return domain.PlanDate(o.now().In(o.location))
}

// RegeneratePlan implements job.PlanRegenerator.
func (o *Orchestrator) RegeneratePlan(ctx context.Context, ownerID uuid.UUID, date time.Time) error {
	_, err := o.Regenerate(ctx, ownerID, date, nil)
	return err
}

// Regenerate runs one regeneration of the owner's plan for referenceDate.
//
// The placeholder is written before generation starts, and the full
// accumulated text is committed after every fragment, so readers always see
// either the placeholder or a prefix of the final plan. listener, when
// non-nil, is told about the placeholder and every committed fragment.
//
// A run waits for any in-flight run of the same owner and date to finish.
// Canceling ctx aborts the run; callers that want persistence to outlive
// the caller should pass a detached context.
func (o *Orchestrator) Regenerate(
	ctx context.Context,
	ownerID uuid.UUID,
	referenceDate time.Time,
	listener Listener,
) (*Result, error) {
	date := domain.PlanDate(referenceDate)
	if date.Before(o.Today()) {
		return nil, fmt.Errorf("%w: %s", ErrPastPlanDate, date.Format(domain.PlanDateLayout))
	}

	runID := uuid.New()
	log := logger.FromContextOrDefault(ctx, o.logger).With(
		slog.String("run_id", runID.String()),
		slog.String("owner_id", ownerID.String()),
		slog.String("plan_date", date.Format(domain.PlanDateLayout)),
	)

	unlock, err := o.locks.Lock(ctx, runKey{ownerID: ownerID, date: date})
	if err != nil {
		return nil, fmt.Errorf("waiting for in-flight run: %w", err)
	}
	defer unlock()

	fsm, err := NewRunMachine(runID.String())
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: runID, PlanDate: date, State: fsm.Current()}
	started := time.Now()

	plan, err := o.plans.Upsert(ctx, ownerID, date, domain.PlaceholderText)
	if err != nil {
		log.Error("failed to write placeholder plan", slog.String("error", err.Error()))
		return result, fmt.Errorf("%w: writing placeholder: %w", ErrPersistence, err)
	}
	result.PlanID = plan.ID
	result.Text = domain.PlaceholderText
	if err := o.advance(fsm, result, eventPlaceholderWritten); err != nil {
		return result, err
	}
	log = log.With(slog.String("plan_id", plan.ID.String()))
	log.Debug("placeholder written")
	if listener != nil {
		listener.PlaceholderWritten(plan.ID)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	tasks, err := o.tasks.ListActive(runCtx, ownerID)
	if err != nil {
		return o.fail(log, fsm, result, o.classify(ctx, runCtx, ErrPersistence, "snapshotting tasks", err))
	}

	prompt := o.composer.Compose(tasks, date)
	if err := o.advance(fsm, result, eventStreamOpened); err != nil {
		return result, err
	}
	log.Debug("streaming plan", slog.Int("task_count", len(tasks)))

	var text strings.Builder
	for fragment, genErr := range o.generator.GenerateStream(runCtx, prompt) {
		if genErr != nil {
			return o.fail(log, fsm, result, o.classify(ctx, runCtx, ErrGenerationBackend, "streaming plan", genErr))
		}
		if fragment == "" {
			continue
		}

		text.WriteString(fragment)
		if err := o.plans.UpdateText(runCtx, plan.ID, text.String()); err != nil {
			return o.fail(log, fsm, result, o.classify(ctx, runCtx, ErrPersistence, "committing fragment", err))
		}
		result.Fragments++
		result.Text = text.String()

		if listener != nil {
			listener.FragmentCommitted(fragment)
		}
	}

	// A stream that swallowed the deadline still counts as timed out.
	if err := runCtx.Err(); err != nil {
		return o.fail(log, fsm, result, o.classify(ctx, runCtx, ErrGenerationBackend, "streaming plan", err))
	}

	if result.Fragments > 0 {
		if err := o.plans.UpdateText(runCtx, plan.ID, result.Text); err != nil {
			return o.fail(log, fsm, result, o.classify(ctx, runCtx, ErrPersistence, "final commit", err))
		}
	}

	if err := o.advance(fsm, result, eventFinalize); err != nil {
		return result, err
	}

	log.Info("plan regeneration finished",
		slog.String("state", result.State),
		slog.Int("fragments", result.Fragments),
		slog.Int64("duration_ms", time.Since(started).Milliseconds()))
	return result, nil
}

func (o *Orchestrator) advance(fsm *RunMachine, result *Result, event string) error {
	err := fsm.Transition(event)
	result.State = fsm.Current()
	return err
}

func (o *Orchestrator) fail(log *slog.Logger, fsm *RunMachine, result *Result, err error) (*Result, error) {
	if tErr := o.advance(fsm, result, eventFail); tErr != nil {
		log.Error("run machine rejected failure", slog.String("error", tErr.Error()))
	}
	log.Error("plan regeneration failed",
		slog.String("state", result.State),
		slog.Int("fragments", result.Fragments),
		slog.String("error", err.Error()))
	return result, err
}

// classify wraps err with kind, or with ErrRunTimeout when the run's own
// deadline expired while the caller's context is still live.
func (o *Orchestrator) classify(ctx, runCtx context.Context, kind error, step string, err error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w after %s while %s: %w", ErrRunTimeout, o.runTimeout, step, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, step, err)
}
