package parser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/scanner"
)

type fakeScanner struct {
	name     string
	articles map[string][]domain.RawArticle
	errs     map[string]error
	inFlight *int32
	maxSeen  *int32
}

func (f fakeScanner) Name() string { return f.name }

func (f fakeScanner) Scan(_ context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	if f.inFlight != nil {
		n := atomic.AddInt32(f.inFlight, 1)
		defer atomic.AddInt32(f.inFlight, -1)
		for {
			seen := atomic.LoadInt32(f.maxSeen)
			if n <= seen || atomic.CompareAndSwapInt32(f.maxSeen, seen, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	if req.BaseURL == "panic" {
		panic("boom")
	}
	return f.articles[req.BaseURL], f.errs[req.BaseURL]
}

func TestStrategySourceDiscover(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(fakeScanner{
		name: "fake",
		articles: map[string][]domain.RawArticle{
			"a": {{URL: "https://a/1"}, {URL: "https://a/2"}},
			"b": {{URL: "https://b/1"}},
		},
		errs: map[string]error{"b": errors.New("page 2 failed")},
	})

	sites := []config.SiteConfig{
		{Name: string(domain.SourceSpaceNews), Scanner: "fake", BaseURL: "a"},
		{Name: string(domain.SourceSNAPI), Scanner: "fake", BaseURL: "b"},
		{Name: string(domain.SourceSpaceWorks), Scanner: "fake", BaseURL: "panic"},
		{Name: string(domain.SourceViaSatellite), Scanner: "missing", BaseURL: "c"},
	}
	src := NewStrategySource(reg, sites, 2, nil)

	batches, err := src.Discover(context.Background(), domain.ScrapeRequest{
		TargetCompanies: "ICEYE",
		Sources: []domain.SourceType{
			domain.SourceSpaceNews,
			domain.SourceSNAPI,
			domain.SourceSpaceWorks,
			domain.SourceViaSatellite,
			domain.SourceNASATechPort,
		},
	})
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if len(batches) != 5 {
		t.Fatalf("expected 5 batches, got %d", len(batches))
	}

	if batches[0].Source != domain.SourceSpaceNews || len(batches[0].Articles) != 2 || batches[0].Err != nil {
		t.Fatalf("unexpected first batch: %+v", batches[0])
	}
	if batches[0].Articles[0].Source != domain.SourceSpaceNews {
		t.Fatalf("source not stamped on article: %+v", batches[0].Articles[0])
	}
	if len(batches[1].Articles) != 1 || batches[1].Err == nil {
		t.Fatalf("expected partial batch with error: %+v", batches[1])
	}
	for i := 2; i < 5; i++ {
		if batches[i].Err == nil || len(batches[i].Articles) != 0 {
			t.Fatalf("expected failed empty batch at %d: %+v", i, batches[i])
		}
	}
}

func TestStrategySourceBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, maxSeen int32
	reg := scanner.NewRegistry()
	reg.Register(fakeScanner{name: "fake", inFlight: &inFlight, maxSeen: &maxSeen})

	var sites []config.SiteConfig
	var sources []domain.SourceType
	for _, s := range domain.AllSources() {
		sites = append(sites, config.SiteConfig{Name: string(s), Scanner: "fake", BaseURL: string(s)})
		sources = append(sources, s)
	}

	src := NewStrategySource(reg, sites, 2, nil)
	if _, err := src.Discover(context.Background(), domain.ScrapeRequest{Sources: sources}); err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if atomic.LoadInt32(&maxSeen) > 2 {
		t.Fatalf("expected at most 2 concurrent scans, saw %d", maxSeen)
	}
}
