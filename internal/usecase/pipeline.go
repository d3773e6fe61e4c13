package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
	"SpaceDealScanner/internal/relevance"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Fetcher    ports.ArticleFetcher
	Analyzer   ports.Analyzer
	Cache      ports.ResultCache
	Repository ports.DealRepository
	Notifier   ports.Notifier
	Publisher  ports.DealPublisher
	Status     *StatusTracker
	// Delay returns the pause after an LLM call for the given model.
	Delay  func(model string) time.Duration
	Logger *slog.Logger
}

// Pipeline implements the discover, filter, analyze and persist workflow.
type Pipeline struct {
	source     ports.ArticleSource
	fetcher    ports.ArticleFetcher
	analyzer   ports.Analyzer
	cache      ports.ResultCache
	repository ports.DealRepository
	notifier   ports.Notifier
	publisher  ports.DealPublisher
	status     *StatusTracker
	delay      func(model string) time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	status := deps.Status
	if status == nil {
		status = NewStatusTracker(0, deps.Logger)
	}
	return &Pipeline{
		source:     deps.Source,
		fetcher:    deps.Fetcher,
		analyzer:   deps.Analyzer,
		cache:      deps.Cache,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		publisher:  deps.Publisher,
		status:     status,
		delay:      deps.Delay,
		sleep:      sleepContext,
		logger:     deps.Logger,
	}
}

// Status exposes the tracker the pipeline writes to.
func (p *Pipeline) Status() *StatusTracker {
	return p.status
}

type itemOutcome int

const (
	itemSkipped itemOutcome = iota
	itemKnown
	itemFiltered
	itemAnalyzed
	itemFailed
)

// Execute runs one full scan for req and returns the relevant deals it saw,
// including those already known from earlier runs. The caller owns the
// tracker lifecycle (TryBegin/Finish).
func (p *Pipeline) Execute(ctx context.Context, req domain.ScrapeRequest, opts domain.AnalysisOptions) (results []domain.DealRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	if p.source == nil || p.fetcher == nil || p.analyzer == nil {
		return nil, errors.New("pipeline is not fully wired")
	}
	if len(opts.Targets) == 0 {
		opts.Targets = req.Targets()
	}

	p.status.SetPhase(domain.StateDiscovering, "Discovering articles")
	p.status.Log(domain.LogInfo, "Searching %d sources for %s", len(req.Sources), req.SearchTarget())

	batches, err := p.source.Discover(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	candidates := p.mergeBatches(batches)

	p.status.SetTotal(len(candidates))
	p.status.SetPhase(domain.StateAnalyzing, fmt.Sprintf("Analyzing %d articles", len(candidates)))
	p.status.Log(domain.LogInfo, "Found %d unique articles", len(candidates))

	var fresh []domain.DealRecord
	for i, raw := range candidates {
		if p.status.StopRequested() {
			p.status.Log(domain.LogWarning, "Run stopped after %d of %d articles", i, len(candidates))
			break
		}
		if ctx.Err() != nil {
			p.status.Log(domain.LogWarning, "Run cancelled after %d of %d articles: %v", i, len(candidates), ctx.Err())
			break
		}

		rec, outcome := p.safeProcessItem(ctx, raw, req, opts)
		if rec.IsRelevant && (outcome == itemKnown || outcome == itemAnalyzed) {
			results = append(results, rec)
			p.status.AddResult(rec)
		}
		if outcome == itemAnalyzed && rec.IsRelevant {
			fresh = append(fresh, rec)
			p.publish(ctx, rec)
		}
		if outcome == itemAnalyzed || outcome == itemFailed {
			p.pause(ctx, opts.Model)
		}

		p.status.Advance(fmt.Sprintf("Processed %d/%d", i+1, len(candidates)))
	}

	p.sendDigest(ctx, req.SearchTarget(), fresh)
	return results, nil
}

// mergeBatches flattens batches in request order and keeps the first
// occurrence of each canonical URL.
func (p *Pipeline) mergeBatches(batches []domain.SourceBatch) []domain.RawArticle {
	seen := make(map[string]struct{})
	var merged []domain.RawArticle
	for _, batch := range batches {
		if batch.Err != nil {
			p.status.Log(domain.LogWarning, "%s: discovery failed: %v", batch.Source, batch.Err)
		}
		if len(batch.Articles) > 0 {
			p.status.Log(domain.LogInfo, "%s: %d candidates", batch.Source, len(batch.Articles))
		}
		for _, raw := range batch.Articles {
			key := domain.CanonicalURL(raw.URL)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			raw.URL = key
			if raw.Source == "" {
				raw.Source = batch.Source
			}
			merged = append(merged, raw)
		}
	}
	return merged
}

// safeProcessItem turns a panic inside one item into a failed item.
func (p *Pipeline) safeProcessItem(ctx context.Context, raw domain.RawArticle, req domain.ScrapeRequest, opts domain.AnalysisOptions) (rec domain.DealRecord, outcome itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.status.Log(domain.LogError, "Processing %s panicked: %v", raw.URL, r)
			rec, outcome = domain.DealRecord{}, itemFailed
		}
	}()
	return p.processItem(ctx, raw, req, opts)
}

func (p *Pipeline) processItem(ctx context.Context, raw domain.RawArticle, req domain.ScrapeRequest, opts domain.AnalysisOptions) (domain.DealRecord, itemOutcome) {
	if !req.ForceRescan {
		if rec, ok := p.lookupKnown(ctx, raw.URL); ok {
			if rec.IsRelevant {
				p.status.Log(domain.LogInfo, "Known deal: %s", titleOrURL(rec.Title, rec.URL))
			}
			return rec, itemKnown
		}
	}

	article, err := p.fetcher.Fetch(ctx, raw)
	if err != nil {
		p.status.Log(domain.LogWarning, "Fetch failed for %s: %v", raw.URL, err)
		return domain.DealRecord{}, itemSkipped
	}
	article.URL = raw.URL

	if req.MinYear > 0 {
		if year, ok := article.PublishedYear(); ok && year < req.MinYear {
			p.debug("article older than min year", "url", article.URL, "year", year)
			return domain.DealRecord{}, itemSkipped
		}
	}

	if !relevance.ContainsTarget(article.SearchText(), opts.Targets) {
		rec := domain.Irrelevant(article, "no target company mentioned")
		rec.SearchTarget = req.SearchTarget()
		p.persist(ctx, rec)
		return rec, itemFiltered
	}

	p.status.Log(domain.LogInfo, "Analyzing: %s", titleOrURL(article.Title, article.URL))
	analysis := p.analyzer.Analyze(ctx, article, opts)
	rec := analysis.Record
	rec.SearchTarget = req.SearchTarget()

	switch analysis.Outcome {
	case domain.OutcomeSuccess:
	case domain.OutcomeExhausted:
		p.status.Log(domain.LogWarning, "Rate limit persisted for %s after %d attempts", article.URL, analysis.Attempts)
		return rec, itemFailed
	default:
		p.status.Log(domain.LogError, "Analysis failed for %s: %v", article.URL, analysis.Err)
		return rec, itemFailed
	}

	p.persist(ctx, rec)
	if rec.IsRelevant {
		p.status.Log(domain.LogSuccess, "Deal found: %s (%s)", titleOrURL(rec.Title, rec.URL), rec.DealType)
	}
	return rec, itemAnalyzed
}

// lookupKnown checks the cache, then the repository. Repository hits warm
// the cache.
func (p *Pipeline) lookupKnown(ctx context.Context, url string) (domain.DealRecord, bool) {
	if p.cache != nil {
		rec, ok, err := p.cache.Load(url)
		if err != nil {
			p.status.Log(domain.LogWarning, "Cache read failed for %s: %v", url, err)
		} else if ok {
			return rec, true
		}
	}
	if p.repository != nil {
		rec, ok, err := p.repository.FindByURL(ctx, url)
		if err != nil {
			p.status.Log(domain.LogWarning, "Database lookup failed for %s: %v", url, err)
			return domain.DealRecord{}, false
		}
		if ok {
			if p.cache != nil {
				if err := p.cache.Save(url, rec); err != nil {
					p.debug("cache warm failed", "url", url, "error", err)
				}
			}
			return rec, true
		}
	}
	return domain.DealRecord{}, false
}

func (p *Pipeline) persist(ctx context.Context, rec domain.DealRecord) {
	if p.cache != nil {
		if err := p.cache.Save(rec.URL, rec); err != nil {
			p.status.Log(domain.LogWarning, "Cache write failed for %s: %v", rec.URL, err)
		}
	}
	if p.repository != nil {
		if err := p.repository.Upsert(ctx, rec); err != nil {
			p.status.Log(domain.LogWarning, "Database write failed for %s: %v", rec.URL, err)
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, rec domain.DealRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishDeal(ctx, rec); err != nil {
		p.status.Log(domain.LogWarning, "Deal event not published for %s: %v", rec.URL, err)
	}
}

func (p *Pipeline) pause(ctx context.Context, model string) {
	if p.delay == nil {
		return
	}
	if err := p.sleep(ctx, p.delay(model)); err != nil {
		p.debug("inter-item delay interrupted", "error", err)
	}
}

func (p *Pipeline) sendDigest(ctx context.Context, target string, deals []domain.DealRecord) {
	if p.notifier == nil || len(deals) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(target, deals)); err != nil {
		p.status.Log(domain.LogWarning, "Digest not delivered: %v", err)
		return
	}
	p.status.Log(domain.LogInfo, "Digest sent with %d deals", len(deals))
}

func buildDigestMessage(target string, deals []domain.DealRecord) string {
	if len(deals) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*New deals for %s*\n\n", target)
	for _, d := range deals {
		fmt.Fprintf(&b, "- %s\n%s", titleOrURL(d.Title, d.URL), d.DealType)
		if d.Amount != "" {
			fmt.Fprintf(&b, " | %s %s", d.Amount, d.Currency)
		}
		fmt.Fprintf(&b, "\n%s\n%s\n\n", d.Summary, d.URL)
	}
	return b.String()
}

func titleOrURL(title, url string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return url
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
