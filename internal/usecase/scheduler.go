package usecase

import (
	"context"
	"log/slog"
	"time"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

// Scheduler wires the cron driver with the runner.
type Scheduler struct {
	driver  ports.Scheduler
	runner  *Runner
	request domain.ScrapeRequest
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring scans of request.
func NewScheduler(driver ports.Scheduler, runner *Runner, request domain.ScrapeRequest, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, runner: runner, request: request, logger: logger}
}

// Start registers the scan with the provided scheduler. Triggers that fire
// while a run is active are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		runID, started, err := s.runner.Start(ctx, s.request)
		switch {
		case err != nil:
			s.log(slog.LevelError, "scheduled scrape rejected", "trigger", trigger, "error", err)
		case !started:
			s.log(slog.LevelInfo, "scheduled scrape skipped, run in progress", "trigger", trigger, "run_id", runID)
		default:
			s.log(slog.LevelInfo, "scheduled scrape started", "trigger", trigger, "run_id", runID)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) log(level slog.Level, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Log(context.Background(), level, msg, args...)
}
