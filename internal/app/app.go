package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"NichePress/internal/config"
	"NichePress/internal/domain"
	"NichePress/internal/generator"
	"NichePress/internal/infrastructure/artifacts"
	"NichePress/internal/infrastructure/citations"
	"NichePress/internal/infrastructure/llm"
	"NichePress/internal/infrastructure/media"
	"NichePress/internal/infrastructure/scheduler"
	"NichePress/internal/infrastructure/sitewriter"
	"NichePress/internal/infrastructure/storage"
	"NichePress/internal/infrastructure/telegram"
	"NichePress/internal/logging"
	"NichePress/internal/ports"
	"NichePress/internal/registry"
	"NichePress/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	db           *sql.DB
	registry     ports.NicheRegistry
	orchestrator *usecase.Orchestrator
	sweeper      *usecase.Sweeper
	logger       *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	var (
		db    *sql.DB
		store ports.NicheRegistry
	)
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store = storage.NewPostgresRegistry(db)
	} else {
		baseLogger.Warn("no database DSN configured, using in-memory registry")
		store = registry.NewMemory()
	}

	providers := generator.NewRegistry()
	if cfg.OpenAI.APIKey != "" {
		providers.Register(llm.NewOpenAIClient(cfg.OpenAI))
	}

	var gen ports.Generator
	if provider, err := providers.Resolve(cfg.Pipeline.Provider); err != nil {
		baseLogger.Warn("generation provider unavailable", "provider", cfg.Pipeline.Provider, "error", err)
	} else {
		gen = provider
	}

	var images ports.ImageSource
	if cfg.Media.Endpoint != "" {
		images = media.NewClient(cfg.Media)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	stages := usecase.NewStages(usecase.StageDeps{
		Generator:           gen,
		Images:              images,
		Citations:           citations.NewWebResolver(nil),
		Logger:              baseLogger.With("component", "stages"),
		MaxAttempts:         cfg.Pipeline.MaxAttempts,
		RetryBackoff:        time.Duration(cfg.Pipeline.RetryBackoff),
		PlaceholderSections: !cfg.Pipeline.FailOnSectionError,
	})

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Registry: store,
		Stages:   stages,
		Sink:     sitewriter.NewMarkdownWriter(cfg.Output.SitesDir),
		Cache:    artifacts.NewFileCache(cfg.Output.ArtifactsDir),
		Notifier: notifier,
		Logger:   baseLogger.With("component", "orchestrator"),
	})

	driver := scheduler.NewCronScheduler(cfg.Sweep.CronExpression, cfg.Sweep.Location())
	sweeper := usecase.NewSweeper(driver, orchestrator, baseLogger.With("component", "sweeper"))

	return &Application{
		cfg:          cfg,
		db:           db,
		registry:     store,
		orchestrator: orchestrator,
		sweeper:      sweeper,
		logger:       baseLogger,
	}, nil
}

// Process registers and generates one niche to completion.
func (a *Application) Process(ctx context.Context, slug string, keywords []string) (domain.NicheRecord, error) {
	return a.orchestrator.Process(ctx, slug, keywords)
}

// Plan registers a niche without generating; the sweep picks it up later.
func (a *Application) Plan(ctx context.Context, slug string, keywords []string) (domain.NicheRecord, bool, error) {
	return a.registry.Register(ctx, slug, keywords)
}

// List returns registry records, optionally filtered by status.
func (a *Application) List(ctx context.Context, filter *domain.Status) ([]domain.NicheRecord, error) {
	return a.registry.List(ctx, filter)
}

// Retry resets a failed niche to planned for another run.
func (a *Application) Retry(ctx context.Context, slug string) (domain.NicheRecord, error) {
	return a.orchestrator.Retry(ctx, slug)
}

// RunSweeper starts the cron-driven sweep and blocks until ctx is done.
func (a *Application) RunSweeper(ctx context.Context) error {
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	<-ctx.Done()
	return a.sweeper.Stop(context.Background())
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
