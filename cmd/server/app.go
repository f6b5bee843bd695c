package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tabbylabs/mintpipe/internal/chain"
	"github.com/tabbylabs/mintpipe/internal/config"
	"github.com/tabbylabs/mintpipe/internal/mint"
	"github.com/tabbylabs/mintpipe/internal/platform/postgres"
	"github.com/tabbylabs/mintpipe/internal/provider"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore       store.TaskStore
	stateStore      store.StateStore
	metricsStore    store.MetricsStore
	preferenceStore store.PreferenceStore
	txRunner        store.TxRunner

	// Generation and chain
	registry  *provider.Registry
	finalizer chain.Finalizer

	// Coordinator
	queue      *mint.Queue
	service    *mint.Service
	dispatcher *mint.Dispatcher
	sweeper    *mint.Sweeper
	tick       *mint.TickHandler

	// Optional in-process scheduler
	scheduler *cron.Cron
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.taskStore = postgres.NewTaskStore(db)
	app.stateStore = postgres.NewStateStore(db)
	app.metricsStore = postgres.NewMetricsStore(db)
	app.preferenceStore = postgres.NewPreferenceStore(db)
	app.txRunner = &store.DBTxRunner{DB: db}

	// Initialize the provider registry
	registry, err := setupProviders(ctx, cfg.Providers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}
	app.registry = registry
	logger.Info("Image providers registered", "providers", registry.Names())

	// Initialize the chain finalizer
	app.finalizer, err = chain.NewEthereumFinalizer(
		ctx,
		logger.With("component", "chain_finalizer"),
		cfg.Chain,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain finalizer: %w", err)
	}
	logger.Info("Chain finalizer initialized",
		"contract", cfg.Chain.ContractAddress,
		"chain_id", cfg.Chain.ChainID)

	// Wire the coordinator
	app.queue = mint.NewQueue(cfg.Mint.QueueSize)
	app.service = mint.NewService(
		logger.With("component", "mint_service"),
		app.txRunner,
		app.taskStore,
		app.metricsStore,
		app.preferenceStore,
		app.registry,
		app.queue,
		cfg.Chain.MaxTokenID,
		cfg.Mint.TaskTimeout,
	)
	app.dispatcher = mint.NewDispatcher(
		logger.With("component", "dispatcher"),
		app.txRunner,
		app.taskStore,
		app.metricsStore,
		app.registry,
		app.finalizer,
		app.queue,
		cfg.Mint.Concurrency,
	)
	app.sweeper = mint.NewSweeper(
		logger.With("component", "sweeper"),
		app.txRunner,
		app.taskStore,
		app.metricsStore,
		cfg.Mint.CleanupTTL,
	)
	app.tick = mint.NewTickHandler(
		logger.With("component", "tick"),
		app.stateStore,
		app.taskStore,
		app.sweeper,
		app.dispatcher,
		app.queue,
		cfg.Mint.TickBudget,
	)

	// Optionally run the tick in-process on a cron schedule
	if cfg.Mint.CronSchedule != "" {
		if err := setupScheduler(app); err != nil {
			return nil, fmt.Errorf("failed to set up cron scheduler: %w", err)
		}
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupProviders builds the adapter registry from the configured API keys.
// Every HTTP-backed provider is registered even with an empty key; it fails
// fast on submit and the fallback chain moves on. Imagen requires a client
// handshake, so it is only registered when a Gemini key is present.
//
// Traits are static deployment knowledge about each provider's relative
// quality, speed, and per-image cost.
func setupProviders(ctx context.Context, cfg config.ProvidersConfig, logger *slog.Logger) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	registry.Register(
		provider.NewDallEAdapter(logger.With("provider", provider.NameDallE),
			cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		provider.Traits{Quality: 0.95, Speed: 0.6, Cost: 0.8},
	)
	registry.Register(
		provider.NewStabilityAdapter(logger.With("provider", provider.NameStability),
			cfg.StabilityAPIKey, cfg.StabilityBaseURL),
		provider.Traits{Quality: 0.85, Speed: 0.8, Cost: 0.4},
	)
	registry.Register(
		provider.NewHuggingFaceAdapter(logger.With("provider", provider.NameHuggingFace),
			cfg.HuggingFaceAPIKey, cfg.HuggingFaceURL),
		provider.Traits{Quality: 0.6, Speed: 0.4, Cost: 0.3, OpenSource: true},
	)

	imagen, err := provider.NewImagenAdapter(ctx,
		logger.With("provider", provider.NameImagen), cfg.GeminiAPIKey)
	switch {
	case err == nil:
		registry.Register(imagen, provider.Traits{Quality: 0.9, Speed: 0.7, Cost: 0.6})
	case errors.Is(err, provider.ErrNotConfigured):
		logger.Info("Imagen provider not configured, skipping registration")
	default:
		return nil, fmt.Errorf("failed to initialize Imagen adapter: %w", err)
	}

	return registry, nil
}

// setupScheduler starts the in-process tick scheduler. Deployments with an
// external scheduler hit /cron instead and leave the schedule empty.
func setupScheduler(app *application) error {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(app.config.Mint.CronSchedule, func() {
		report, err := app.tick.Tick(context.Background())
		if err != nil {
			app.logger.Error("Scheduled tick failed", "error", err)
			return
		}
		app.logger.Info("Scheduled tick completed",
			"swept", report.Swept,
			"dispatched", report.Dispatched,
			"duration_ms", report.DurationMs)
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", app.config.Mint.CronSchedule, err)
	}

	scheduler.Start()
	app.scheduler = scheduler
	app.logger.Info("In-process tick scheduler started",
		"schedule", app.config.Mint.CronSchedule)
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	// Stop the scheduler and wait for a running tick to finish
	if app.scheduler != nil {
		<-app.scheduler.Stop().Done()
	}

	// Close database connection
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
