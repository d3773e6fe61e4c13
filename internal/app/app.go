package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/infrastructure/cache"
	"SpaceDealScanner/internal/infrastructure/llm"
	"SpaceDealScanner/internal/infrastructure/messaging"
	"SpaceDealScanner/internal/infrastructure/parser"
	"SpaceDealScanner/internal/infrastructure/scheduler"
	"SpaceDealScanner/internal/infrastructure/storage"
	"SpaceDealScanner/internal/infrastructure/telegram"
	"SpaceDealScanner/internal/logging"
	"SpaceDealScanner/internal/ports"
	"SpaceDealScanner/internal/scanner"
	"SpaceDealScanner/internal/transport/httpapi"
	"SpaceDealScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	repo      *storage.DealRepository
	runner    *usecase.Runner
	scheduler *usecase.Scheduler
	publisher *messaging.DealPublisher
}

// New opens storage and builds every adapter the configuration enables.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, dialect, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repo := storage.NewDealRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	resultCache, err := cache.NewFileCache(cfg.Cache.Dir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	httpFetcher := parser.NewHTTPFetcher(cfg.SourceHTTP, nil, baseLogger.With("component", "http"))
	registry := scanner.NewRegistry()
	registry.Register(parser.NewWordPressScanner(httpFetcher, baseLogger.With("component", "scanner.wordpress")))
	registry.Register(parser.NewSNAPIScanner(httpFetcher, baseLogger.With("component", "scanner.snapi")))
	registry.Register(parser.NewRSSScanner(httpFetcher, baseLogger.With("component", "scanner.rss")))
	registry.Register(parser.NewTechPortScanner(httpFetcher, baseLogger.With("component", "scanner.techport")))

	source := parser.NewStrategySource(registry, cfg.Sites, cfg.Pipeline.DiscoveryWorkers, baseLogger.With("component", "source"))
	fetcher := parser.NewArticleFetcher(httpFetcher, baseLogger.With("component", "fetcher"))
	analyzer := llm.NewExtractor(llm.NewChatClient(cfg.LLM.Timeout), cfg.LLM, baseLogger.With("component", "llm"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	application := &Application{cfg: cfg, logger: baseLogger, db: db, repo: repo}

	var publisher ports.DealPublisher
	if cfg.Notifications.NATS.URL != "" {
		p, err := messaging.Connect(cfg.Notifications.NATS.URL, cfg.Notifications.NATS.SubjectPrefix, baseLogger.With("component", "nats"))
		if err != nil {
			baseLogger.Warn("deal events disabled", "error", err)
		} else {
			application.publisher = p
			publisher = p
		}
	}

	status := usecase.NewStatusTracker(cfg.Pipeline.StatusLogLimit, baseLogger.With("component", "status"))
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Fetcher:    fetcher,
		Analyzer:   analyzer,
		Cache:      resultCache,
		Repository: repo,
		Notifier:   notifier,
		Publisher:  publisher,
		Status:     status,
		Delay:      itemDelay(cfg),
		Logger:     baseLogger.With("component", "pipeline"),
	})

	application.runner = usecase.NewRunner(pipeline, usecase.RunnerConfig{
		RunTimeout:      cfg.Pipeline.RunTimeout,
		DefaultMinYear:  cfg.Pipeline.DefaultMinYear,
		DefaultMaxPages: cfg.Pipeline.DefaultMaxPages,
		DefaultModel:    cfg.LLM.Model,
		DefaultAPIKey:   cfg.LLM.APIKey,
		SystemPrompt:    cfg.LLM.SystemPrompt,
	}, baseLogger.With("component", "runner"))

	if cfg.Scheduler.Enabled {
		driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
		if err := driver.Validate(); err != nil {
			_ = application.Close()
			return nil, err
		}
		application.scheduler = usecase.NewScheduler(driver, application.runner, cfg.Scheduler.Request, baseLogger.With("component", "scheduler"))
	}

	return application, nil
}

// itemDelay picks the longer pause for providers flagged strict.
func itemDelay(cfg config.Config) func(model string) time.Duration {
	return func(model string) time.Duration {
		if model == "" {
			model = cfg.LLM.Model
		}
		if llm.ResolveProvider(cfg.LLM, model).Strict {
			return cfg.Pipeline.StrictItemDelay
		}
		return cfg.Pipeline.ItemDelay
	}
}

// Runner exposes the single-flight runner.
func (a *Application) Runner() *usecase.Runner {
	return a.runner
}

// Repository exposes persisted deals.
func (a *Application) Repository() ports.DealRepository {
	return a.repo
}

// Server builds the HTTP API over this application.
func (a *Application) Server() *httpapi.Server {
	return httpapi.NewServer(a.cfg.HTTP, httpapi.Deps{
		Runner:     a.runner,
		Repository: a.repo,
		Scoring:    a.cfg.Scoring,
		Logger:     a.logger.With("component", "http"),
	})
}

// Serve runs the HTTP API and the optional schedule until ctx is cancelled,
// then waits for an in-flight scrape to return.
func (a *Application) Serve(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduled scrapes enabled", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())
	}

	err := a.Server().Run(ctx)

	if a.scheduler != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if serr := a.scheduler.Stop(stopCtx); serr != nil {
			a.logger.Warn("scheduler stop", "error", serr)
		}
		cancel()
	}
	a.runner.Stop()
	a.runner.Wait()
	return err
}

// Scrape performs one synchronous run.
func (a *Application) Scrape(ctx context.Context, req domain.ScrapeRequest) ([]domain.DealRecord, error) {
	return a.runner.Run(ctx, req)
}

// Close releases the database and the NATS connection.
func (a *Application) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
