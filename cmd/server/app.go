package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/deckgen-api/internal/auth"
	"github.com/phrazzld/deckgen-api/internal/config"
	"github.com/phrazzld/deckgen-api/internal/events"
	"github.com/phrazzld/deckgen-api/internal/generation"
	"github.com/phrazzld/deckgen-api/internal/platform/gcs"
	"github.com/phrazzld/deckgen-api/internal/platform/gemini"
	"github.com/phrazzld/deckgen-api/internal/platform/postgres"
	"github.com/phrazzld/deckgen-api/internal/publish"
	"github.com/phrazzld/deckgen-api/internal/service"
	"github.com/phrazzld/deckgen-api/internal/store"
	"github.com/phrazzld/deckgen-api/internal/task"
)

// application holds the shared dependencies of the server process and
// releases them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore   store.TaskStore
	jwtService  auth.JWTService
	connector   generation.Connector
	publisher   publish.Publisher
	deckService service.DeckService

	// publicDir is served under publish.URLPrefix when artifacts are
	// published locally. Empty otherwise.
	publicDir string

	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.TaskRunner
	reconciler   *task.Reconciler

	// closers are released in reverse order during cleanup.
	closers []io.Closer
}

// newApplication creates the application with every dependency wired.
// The database connection must already be established and migrated.
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
	logger.Info("JWT authentication service initialized", "token_lifetime", cfg.Auth.TokenLifetime)

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	app.connector, err = gemini.NewConnector(ctx, cfg.Gemini, cfg.Generation.PollInterval, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation connector: %w", err)
	}
	logger.Info("generation connector initialized", "model", cfg.Gemini.Model)

	if err := app.setupPublisher(ctx); err != nil {
		return nil, err
	}

	if err := app.setupTasks(); err != nil {
		app.closeResources()
		return nil, err
	}

	app.deckService, err = service.NewDeckService(app.taskStore, app.eventEmitter, service.DeckServiceConfig{
		DefaultTitle:   cfg.Generation.DefaultTitle,
		StagingBaseDir: cfg.Staging.BaseDir,
		MaxFiles:       cfg.Server.MaxFiles,
	}, logger)
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("failed to create deck service: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupPublisher selects the artifact publisher named by publisher.kind.
func (app *application) setupPublisher(ctx context.Context) error {
	cfg := app.config.Publisher

	switch cfg.Kind {
	case "gcs":
		p, err := gcs.NewPublisher(ctx, cfg, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS publisher: %w", err)
		}
		app.publisher = p
		app.closers = append(app.closers, p)
	default:
		p, err := publish.NewLocalPublisher(cfg.LocalDir, cfg.BaseURL, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize local publisher: %w", err)
		}
		app.publisher = p
		app.publicDir = p.Dir()
	}

	app.logger.Info("artifact publisher initialized", "kind", cfg.Kind)
	return nil
}

// setupTasks wires the runner, the deck generation factory, the event
// handler that connects them, and the reconciler.
func (app *application) setupTasks() error {
	cfg := app.config

	instructions, err := generation.NewInstructionBuilder(
		cfg.Generation.InstructionsTemplate,
		cfg.Generation.Language,
		cfg.Generation.Style,
	)
	if err != nil {
		return fmt.Errorf("failed to build generation instructions: %w", err)
	}

	factory, err := task.NewDeckGenerationTaskFactory(
		app.taskStore,
		app.connector,
		app.publisher,
		instructions,
		task.NewDeckGenerationConfig(cfg.Generation, cfg.Task, cfg.Staging),
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create deck generation task factory: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(task.TaskRunnerConfig{
		MaxConcurrentRuns: int64(cfg.Task.MaxConcurrentRuns),
	}, app.logger)
	app.taskRunner.SetErrorHandler(func(t task.Task, err error) {
		app.logger.Error("deck generation run ended with error", "task_id", t.ID(), "error", err)
	})

	app.eventEmitter = events.NewInMemoryEventEmitter(app.logger)
	app.eventEmitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, app.taskRunner, app.logger))

	app.reconciler, err = task.NewReconciler(app.taskStore, task.ReconcilerConfig{
		StuckTaskAge:   cfg.Task.StuckTaskAge,
		CheckInterval:  cfg.Task.StuckTaskCheckInterval,
		StagingBaseDir: cfg.Staging.BaseDir,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task reconciler: %w", err)
	}

	return nil
}

// closeResources releases publisher clients and similar handles.
func (app *application) closeResources() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error("error closing resource", "error", err)
		}
	}
	app.closers = nil
}

// cleanup releases everything held by the application, including the
// database. The task runner is stopped separately since it needs a deadline.
func (app *application) cleanup() {
	app.closeResources()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
