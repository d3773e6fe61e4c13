package ports

import (
	"context"
	"time"

	"SpaceDealScanner/internal/domain"
)

// ArticleSource discovers candidate articles across the requested providers.
// A failing provider yields an empty batch carrying its error; only
// misconfiguration fails the whole call.
type ArticleSource interface {
	Discover(ctx context.Context, req domain.ScrapeRequest) ([]domain.SourceBatch, error)
}

// ArticleFetcher downloads and parses the article body behind a stub.
type ArticleFetcher interface {
	Fetch(ctx context.Context, raw domain.RawArticle) (domain.Article, error)
}

// Analyzer extracts a normalized deal record from an article. It never
// returns an error: failures surface as a degraded record and outcome.
type Analyzer interface {
	Analyze(ctx context.Context, article domain.Article, opts domain.AnalysisOptions) domain.Analysis
}

// ResultCache is the URL-addressed short-circuit in front of fetch and analysis.
type ResultCache interface {
	Load(url string) (domain.DealRecord, bool, error)
	Save(url string, record domain.DealRecord) error
}

// DealRepository persists deal records keyed by URL.
type DealRepository interface {
	FindByURL(ctx context.Context, url string) (domain.DealRecord, bool, error)
	Upsert(ctx context.Context, record domain.DealRecord) error
	QueryDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealRecord, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// DealPublisher emits an event per newly found relevant deal.
type DealPublisher interface {
	PublishDeal(ctx context.Context, record domain.DealRecord) error
}

// Scheduler controls when unattended runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
