package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/phrazzld/dayplan-api/internal/generation"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/service/regeneration"
	"github.com/phrazzld/dayplan-api/internal/store"
)

// Regenerator runs plan regenerations. *regeneration.Orchestrator implements it.
type Regenerator interface {
	Regenerate(
		ctx context.Context,
		ownerID uuid.UUID,
		referenceDate time.Time,
		listener regeneration.Listener,
	) (*regeneration.Result, error)
	Today() time.Time
}

var _ Regenerator = (*regeneration.Orchestrator)(nil)

// PlanService serves plan queries and regenerations.
type PlanService struct {
	plans       store.PlanStore
	regenerator Regenerator
	notifier    ChangeNotifier
	composer    *generation.Composer
	generator   generation.Generator
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPlanService creates a PlanService. notifier schedules fire-and-forget
// regenerations; generator serves description suggestions.
func NewPlanService(
	plans store.PlanStore,
	regenerator Regenerator,
	notifier ChangeNotifier,
	composer *generation.Composer,
	generator generation.Generator,
	logger *slog.Logger,
) (*PlanService, error) {
	switch {
	case plans == nil:
		return nil, NewServiceError("plan", "create_service", errNilDependency("plans"))
	case regenerator == nil:
		return nil, NewServiceError("plan", "create_service", errNilDependency("regenerator"))
	case notifier == nil:
		return nil, NewServiceError("plan", "create_service", errNilDependency("notifier"))
	case generator == nil:
		return nil, NewServiceError("plan", "create_service", errNilDependency("generator"))
	}
	if composer == nil {
		composer = generation.NewComposer()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PlanService{
		plans:       plans,
		regenerator: regenerator,
		notifier:    notifier,
		composer:    composer,
		generator:   generator,
		logger:      logger.With("component", "plan_service"),
	}, nil
}

// GetCurrentPlan returns the owner's most recently created plan, or
// store.ErrPlanNotFound.
func (s *PlanService) GetCurrentPlan(ctx context.Context, ownerID uuid.UUID) (*domain.DailyPlan, error) {
	plan, err := s.plans.GetLatestForUser(ctx, ownerID)
	if err != nil {
		return nil, NewServiceError("plan", "get_current", err)
	}
	return plan, nil
}

// GetPlanForDate returns the owner's plan for a calendar date, or
// store.ErrPlanNotFound.
func (s *PlanService) GetPlanForDate(ctx context.Context, ownerID uuid.UUID, date time.Time) (*domain.DailyPlan, error) {
	plan, err := s.plans.GetForDate(ctx, ownerID, date)
	if err != nil {
		return nil, NewServiceError("plan", "get_for_date", err)
	}
	return plan, nil
}

// ListPlanHistory returns all of the owner's plans, newest date first.
func (s *PlanService) ListPlanHistory(ctx context.Context, ownerID uuid.UUID) ([]*domain.DailyPlan, error) {
	plans, err := s.plans.ListForUser(ctx, ownerID)
	if err != nil {
		return nil, NewServiceError("plan", "list_history", err)
	}
	return plans, nil
}

// Regenerate runs a regeneration and waits for it to finish. A zero date
// means today.
func (s *PlanService) Regenerate(ctx context.Context, ownerID uuid.UUID, date time.Time) (*regeneration.Result, error) {
	if date.IsZero() {
		date = s.regenerator.Today()
	}
	result, err := s.regenerator.Regenerate(ctx, ownerID, date, nil)
	if err != nil {
		return result, NewServiceError("plan", "regenerate", err)
	}
	return result, nil
}

// RequestRegeneration schedules a background regeneration of today's plan
// and returns immediately.
func (s *PlanService) RequestRegeneration(ctx context.Context, ownerID uuid.UUID) {
	s.notifier.OnTaskChanged(ctx, ownerID)
}

// PlanStream is a regeneration started by StreamRegenerate.
type PlanStream struct {
	// PlanID is the record the run writes to.
	PlanID uuid.UUID

	relay *streamRelay
}

// StreamRegenerate starts a regeneration of today's plan on a context
// detached from ctx and returns once the placeholder is durable. The run
// keeps persisting fragments even if the caller stops reading.
func (s *PlanService) StreamRegenerate(ctx context.Context, ownerID uuid.UUID) (*PlanStream, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	relay := newStreamRelay()
	date := s.regenerator.Today()

	err := s.goDetached(ctx, func(runCtx context.Context) {
		_, err := s.regenerator.Regenerate(runCtx, ownerID, date, relay)
		relay.finish(err)
	})
	if err != nil {
		return nil, err
	}

	for {
		planID, started, done, runErr := relay.status()
		if started {
			log.Debug("streaming regeneration started", "owner_id", ownerID, "plan_id", planID)
			return &PlanStream{PlanID: planID, relay: relay}, nil
		}
		if done {
			return nil, NewServiceError("plan", "stream_regenerate", runErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-relay.notify:
		}
	}
}

// Fragments yields each fragment once it has been committed. A run failure
// is yielded as the final error. Iteration ends early when ctx is done; the
// run itself carries on.
func (p *PlanStream) Fragments(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			fragments, done, err := p.relay.take()
			for _, f := range fragments {
				if !yield(f, nil) {
					return
				}
			}
			if done {
				if err != nil {
					yield("", NewServiceError("plan", "stream_regenerate", err))
				}
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-p.relay.notify:
			}
		}
	}
}

// SuggestDescription streams a task description drafted for title. Nothing
// is persisted.
func (s *PlanService) SuggestDescription(ctx context.Context, title string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if strings.TrimSpace(title) == "" {
			yield("", ErrEmptyTitle)
			return
		}

		prompt := s.composer.ComposeSuggestion(title)
		for fragment, err := range s.generator.GenerateStream(ctx, prompt) {
			if err != nil {
				yield("", fmt.Errorf("%w: %w", regeneration.ErrGenerationBackend, err))
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Wait stops new streaming runs from starting and blocks until the running
// ones finish.
func (s *PlanService) Wait() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *PlanService) goDetached(ctx context.Context, fn func(context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServiceClosed
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(runCtx)
	}()
	return nil
}

// streamRelay hands committed fragments from a run to a reader without ever
// blocking the run.
type streamRelay struct {
	mu      sync.Mutex
	planID  uuid.UUID
	started bool
	pending []string
	done    bool
	err     error

	notify chan struct{}
}

var _ regeneration.Listener = (*streamRelay)(nil)

func newStreamRelay() *streamRelay {
	return &streamRelay{notify: make(chan struct{}, 1)}
}

func (r *streamRelay) PlaceholderWritten(planID uuid.UUID) {
	r.mu.Lock()
	r.planID = planID
	r.started = true
	r.mu.Unlock()
	r.signal()
}

func (r *streamRelay) FragmentCommitted(fragment string) {
	r.mu.Lock()
	r.pending = append(r.pending, fragment)
	r.mu.Unlock()
	r.signal()
}

func (r *streamRelay) finish(err error) {
	r.mu.Lock()
	r.done = true
	r.err = err
	r.mu.Unlock()
	r.signal()
}

func (r *streamRelay) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *streamRelay) status() (planID uuid.UUID, started, done bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.planID, r.started, r.done, r.err
}

func (r *streamRelay) take() ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fragments := r.pending
	r.pending = nil
	return fragments, r.done, r.err
}
