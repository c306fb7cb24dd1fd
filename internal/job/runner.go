package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs execute concurrently
	WorkerCount int

	// QueueSize is the buffer size of the in-memory queue. Submissions beyond
	// it are held until a worker frees a slot; they never block the submitter.
	QueueSize int

	// StuckJobAge defines how long a job can stay in processing
	// before it's considered stuck and requeued
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs.
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		QueueSize:             100,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// Runner manages background job processing
type Runner struct {
	store     JobStore
	queue     chan Job
	factories map[string]Factory

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	stopped bool

	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(job Job, err error)
}

// NewRunner creates a Runner. Jobs execute on a context owned by the runner,
// so they outlive the request that submitted them.
func NewRunner(store JobStore, config RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "job_runner")

	return &Runner{
		store:      store,
		queue:      make(chan Job, config.QueueSize),
		factories:  make(map[string]Factory),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(job Job, err error) {
			logger.Error("job execution failed",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the function called after a job fails
func (r *Runner) SetErrorHandler(handler func(job Job, err error)) {
	r.errHandler = handler
}

// RegisterFactory makes jobs of f.Type() recoverable after a restart.
func (r *Runner) RegisterFactory(f Factory) {
	r.factories[f.Type()] = f
}

// Submit persists job and queues it for execution. It returns once the job
// is saved; it never waits for a free worker.
func (r *Runner) Submit(ctx context.Context, job Job) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrRunnerStopped
	}
	r.mu.Unlock()

	if err := r.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	r.enqueue(job)
	return nil
}

// enqueue hands job to the workers without blocking. When the buffer is full
// a goroutine holds the job until there is room or the runner stops; a job
// dropped at shutdown is still pending in the store and is recovered on the
// next start.
func (r *Runner) enqueue(job Job) {
	select {
	case r.queue <- job:
		return
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	r.logger.Warn("job queue is full, deferring enqueue",
		"job_id", job.ID(),
		"job_type", job.Type(),
		"queue_cap", cap(r.queue))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case r.queue <- job:
		case <-r.ctx.Done():
		}
	}()
}

// Start recovers unfinished jobs and launches the workers and the stuck-job monitor
func (r *Runner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	r.logger.Info("job runner started", "worker_count", r.config.WorkerCount)
	return nil
}

// Stop cancels running jobs and waits for all runner goroutines to exit.
// Interrupted jobs are left in processing and picked up by the next Recover.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// Recover loads pending and processing jobs left by a previous process and requeues them
func (r *Runner) Recover() error {
	ctx := context.Background()

	pending, err := r.store.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processing, err := r.store.GetProcessingJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.requeue(ctx, rec, false, "")
	}
	for _, rec := range processing {
		r.requeue(ctx, rec, true, "reset after recovery")
	}

	return nil
}

// requeue rebuilds rec and queues it. resetStatus moves the record back to
// pending first.
func (r *Runner) requeue(ctx context.Context, rec Record, resetStatus bool, reason string) {
	log := r.logger.With("job_id", rec.ID, "job_type", rec.Type)

	job, err := r.rebuild(rec)
	if err != nil {
		log.Error("failed to rebuild job", "error", err)
		if updateErr := r.store.UpdateJobStatus(ctx, rec.ID, StatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to mark unrecoverable job as failed", "error", updateErr)
		}
		return
	}

	if resetStatus {
		if err := r.store.UpdateJobStatus(ctx, rec.ID, StatusPending, reason); err != nil {
			log.Error("failed to reset job status", "error", err)
			return
		}
	}

	r.enqueue(job)
	log.Debug("job requeued")
}

func (r *Runner) rebuild(rec Record) (Job, error) {
	f, ok := r.factories[rec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, rec.Type)
	}
	return f.FromRecord(rec)
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		case job := <-r.queue:
			r.processJob(job, id)
		}
	}
}

func (r *Runner) processJob(job Job, workerID int) {
	// Status writes must land even while the runner is shutting down.
	statusCtx := context.WithoutCancel(r.ctx)
	log := r.logger.With(
		"job_id", job.ID(),
		"job_type", job.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateJobStatus(statusCtx, job.ID(), StatusProcessing, ""); err != nil {
		log.Error("failed to update job status to processing", "error", err)
		return
	}

	log.Info("processing job")
	started := time.Now()

	err := job.Execute(r.ctx)
	if err != nil {
		if r.ctx.Err() != nil {
			log.Warn("job interrupted by shutdown", "error", err)
			return
		}

		if updateErr := r.store.UpdateJobStatus(statusCtx, job.ID(), StatusFailed, err.Error()); updateErr != nil {
			log.Error("failed to update job status to failed", "error", updateErr)
		}
		r.errHandler(job, err)
		return
	}

	log.Info("job completed", "duration_ms", time.Since(started).Milliseconds())
	if updateErr := r.store.UpdateJobStatus(statusCtx, job.ID(), StatusCompleted, ""); updateErr != nil {
		log.Error("failed to update job status to completed", "error", updateErr)
	}
}

// stuckJobMonitor periodically requeues jobs that have been processing for too long
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.requeueStuckJobs(context.Background())
		}
	}
}

func (r *Runner) requeueStuckJobs(ctx context.Context) {
	stuck, err := r.store.GetProcessingJobs(ctx, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to check for stuck jobs", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck jobs", "count", len(stuck))
	for _, rec := range stuck {
		r.requeue(ctx, rec, true, "reset after being stuck in processing state")
	}
}
