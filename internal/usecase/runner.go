package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"SpaceDealScanner/internal/domain"
)

var (
	// ErrInvalidRequest wraps every submission validation failure.
	ErrInvalidRequest = errors.New("invalid scrape request")
	// ErrRunInProgress is returned by Run when another run holds the tracker.
	ErrRunInProgress = errors.New("a scrape is already running")
)

// RunnerConfig carries defaults applied to incoming requests.
type RunnerConfig struct {
	RunTimeout      time.Duration
	DefaultMinYear  int
	DefaultMaxPages int
	DefaultModel    string
	DefaultAPIKey   string
	SystemPrompt    string
}

// Runner enforces a single in-flight pipeline run.
type Runner struct {
	pipeline *Pipeline
	status   *StatusTracker
	cfg      RunnerConfig
	newID    func() string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewRunner binds the pipeline and its tracker.
func NewRunner(pipeline *Pipeline, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = time.Hour
	}
	return &Runner{
		pipeline: pipeline,
		status:   pipeline.Status(),
		cfg:      cfg,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Status returns a snapshot of the current or last run.
func (r *Runner) Status() domain.PipelineStatus {
	return r.status.Snapshot()
}

// Start validates req and launches it in the background. While a run is
// active it returns that run's id with started=false.
func (r *Runner) Start(ctx context.Context, req domain.ScrapeRequest) (string, bool, error) {
	prepared, opts, err := r.prepare(req)
	if err != nil {
		return "", false, err
	}

	runID, started := r.status.TryBegin(r.newID())
	if !started {
		return runID, false, nil
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RunTimeout)
		defer cancel()
		r.execute(runCtx, runID, prepared, opts)
	}()
	return runID, true, nil
}

// Run executes synchronously and returns the relevant deals.
func (r *Runner) Run(ctx context.Context, req domain.ScrapeRequest) ([]domain.DealRecord, error) {
	prepared, opts, err := r.prepare(req)
	if err != nil {
		return nil, err
	}

	runID, started := r.status.TryBegin(r.newID())
	if !started {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, runID)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	defer cancel()
	return r.execute(runCtx, runID, prepared, opts)
}

// Stop asks the active run to finish before its next item.
func (r *Runner) Stop() bool {
	return r.status.RequestStop()
}

// Wait blocks until background runs started by Start have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, runID string, req domain.ScrapeRequest, opts domain.AnalysisOptions) ([]domain.DealRecord, error) {
	started := time.Now()
	r.info("scrape started", "run_id", runID, "targets", req.SearchTarget(), "sources", len(req.Sources))

	results, err := r.pipeline.Execute(ctx, req, opts)
	r.status.Finish(err)

	if err != nil {
		r.error("scrape failed", "run_id", runID, "error", err, "elapsed", time.Since(started).String())
		return results, err
	}
	r.info("scrape finished", "run_id", runID, "deals", len(results), "elapsed", time.Since(started).String())
	return results, nil
}

// prepare applies defaults and validates. A missing API key is only an error
// when no key is configured either.
func (r *Runner) prepare(req domain.ScrapeRequest) (domain.ScrapeRequest, domain.AnalysisOptions, error) {
	if req.MinYear == 0 {
		req.MinYear = r.cfg.DefaultMinYear
	}
	if req.MaxPages == 0 {
		req.MaxPages = r.cfg.DefaultMaxPages
	}
	req.Sources = append([]domain.SourceType(nil), req.Sources...)
	for i, src := range req.Sources {
		if parsed, err := domain.ParseSourceType(string(src)); err == nil {
			req.Sources[i] = parsed
		}
	}

	errs := []error{req.Validate()}
	apiKey := firstNonBlank(req.APIKey, r.cfg.DefaultAPIKey)
	if apiKey == "" {
		errs = append(errs, errors.New("api_key is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return req, domain.AnalysisOptions{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	opts := domain.AnalysisOptions{
		Model:        firstNonBlank(req.AIModel, r.cfg.DefaultModel),
		APIKey:       apiKey,
		SystemPrompt: firstNonBlank(req.SystemPrompt, r.cfg.SystemPrompt),
		Targets:      req.Targets(),
	}
	return req, opts, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func (r *Runner) info(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Info(msg, args...)
}

func (r *Runner) error(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Error(msg, args...)
}
