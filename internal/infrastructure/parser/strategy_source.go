package parser

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
	"SpaceDealScanner/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies,
// running the requested providers concurrently.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	workers  int
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, workers int, log *slog.Logger) *StrategySource {
	if workers < 1 {
		workers = 1
	}
	return &StrategySource{
		registry: reg,
		sites:    sites,
		workers:  workers,
		logger:   log,
	}
}

// Discover scans every requested provider with at most `workers` in flight.
// Batches come back in request order; a failed provider has Err set.
func (s *StrategySource) Discover(ctx context.Context, req domain.ScrapeRequest) ([]domain.SourceBatch, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("discover", "sources", len(req.Sources), "workers", s.workers)

	batches := make([]domain.SourceBatch, len(req.Sources))
	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, source := range req.Sources {
		i, source := i, source
		g.Go(func() error {
			batches[i] = s.scanSource(ctx, source, req)
			return nil
		})
	}
	_ = g.Wait()

	return batches, nil
}

func (s *StrategySource) scanSource(ctx context.Context, source domain.SourceType, req domain.ScrapeRequest) (batch domain.SourceBatch) {
	batch.Source = source
	defer func() {
		if r := recover(); r != nil {
			batch.Articles = nil
			batch.Err = fmt.Errorf("scanner panic: %v", r)
		}
	}()

	site, ok := config.FindSite(s.sites, source)
	if !ok {
		batch.Err = fmt.Errorf("no site configured for %s", source)
		return batch
	}

	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		batch.Err = fmt.Errorf("site %s: %w", site.Name, err)
		return batch
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		Source:   source,
		BaseURL:  site.BaseURL,
		Targets:  req.Targets(),
		MinYear:  req.MinYear,
		MaxPages: req.MaxPages,
		PerPage:  site.PerPage,
		Options:  site.Options,
	})
	for i := range results {
		if results[i].Source == "" {
			results[i].Source = source
		}
	}

	batch.Articles = results
	if err != nil {
		batch.Err = fmt.Errorf("scan site %s: %w", site.Name, err)
		s.warn("source failed", "site", site.Name, "collected", len(results), "error", err)
	}
	s.debug("site produced articles", "site", site.Name, "count", len(results))
	return batch
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
