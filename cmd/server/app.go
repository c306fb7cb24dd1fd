package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/dayplan-api/internal/api"
	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/phrazzld/dayplan-api/internal/events"
	"github.com/phrazzld/dayplan-api/internal/generation"
	"github.com/phrazzld/dayplan-api/internal/job"
	"github.com/phrazzld/dayplan-api/internal/platform/gemini"
	"github.com/phrazzld/dayplan-api/internal/platform/openai"
	"github.com/phrazzld/dayplan-api/internal/platform/postgres"
	"github.com/phrazzld/dayplan-api/internal/service"
	"github.com/phrazzld/dayplan-api/internal/service/auth"
	"github.com/phrazzld/dayplan-api/internal/service/regeneration"
	"github.com/phrazzld/dayplan-api/internal/store"
)

// application holds the shared dependencies so they can be shut down in order.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore
	planStore store.PlanStore
	jobStore  *postgres.PostgresJobStore

	jwtService   auth.JWTService
	generator    generation.Generator
	orchestrator *regeneration.Orchestrator
	taskService  *service.TaskService
	planService  *service.PlanService

	eventEmitter *events.InMemoryEventEmitter
	jobRunner    *job.Runner
}

// newApplication wires every component. Nothing is started; Run does that.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	location, err := time.LoadLocation(cfg.Planning.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load planning timezone %q: %w", cfg.Planning.Timezone, err)
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.planStore = postgres.NewPostgresPlanStore(db, logger)
	app.jobStore = postgres.NewPostgresJobStore(db, logger)

	app.generator, err = newGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized", "provider", cfg.LLM.Provider)

	composer := generation.NewComposer()
	app.orchestrator, err = regeneration.NewOrchestrator(
		app.taskStore,
		app.planStore,
		composer,
		app.generator,
		regeneration.Config{
			RunTimeout: time.Duration(cfg.Planning.RunTimeoutSeconds) * time.Second,
			Location:   location,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	app.jobRunner = job.NewRunner(app.jobStore, job.RunnerConfig{
		WorkerCount: cfg.Job.WorkerCount,
		QueueSize:   cfg.Job.QueueSize,
		StuckJobAge: time.Duration(cfg.Job.StuckJobAgeMinutes) * time.Minute,
	}, logger)

	factory, err := job.NewPlanRegenerationFactory(app.orchestrator, location, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan regeneration factory: %w", err)
	}
	app.jobRunner.RegisterFactory(factory)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(job.NewEventHandler(factory, app.jobRunner, logger))

	trigger, err := service.NewRegenerationTrigger(app.eventEmitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create regeneration trigger: %w", err)
	}

	app.taskService, err = service.NewTaskService(app.taskStore, trigger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.planService, err = service.NewPlanService(app.planStore, app.orchestrator, trigger, composer, app.generator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan service: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// newGenerator builds the configured backend wrapped with rate limiting and
// pre-stream retries.
func newGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Generator, error) {
	var (
		backend generation.Generator
		err     error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		backend, err = gemini.NewGeminiGenerator(ctx, logger, cfg)
	case config.ProviderOpenAI:
		backend, err = openai.NewGenerator(cfg, nil, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return generation.NewResilientGenerator(backend, generation.ResilienceConfig{
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        time.Duration(cfg.RetryDelaySeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger), nil
}

func (app *application) handler() http.Handler {
	return api.NewRouter(api.RouterDeps{
		Tasks:          app.taskService,
		Plans:          app.planService,
		Suggester:      app.planService,
		JWTService:     app.jwtService,
		Logger:         app.logger,
		RequestLogging: app.config.Server.LogLevel == "debug",
	})
}

// Run starts the job runner and serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.jobRunner.Start(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.handler()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup waits for detached streaming runs, stops the job runner and closes
// the database, in that order.
func (app *application) cleanup() {
	if app.planService != nil {
		app.planService.Wait()
	}
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}
