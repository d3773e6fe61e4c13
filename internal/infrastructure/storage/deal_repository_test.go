package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
)

func newTestRepository(t *testing.T) *DealRepository {
	t.Helper()

	ctx := context.Background()
	db, dialect, err := Open(ctx, config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "deals.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewDealRepository(db, dialect)
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func score(v float64) *float64 { return &v }

func TestDealRepositoryUpsertAndFind(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	rec := domain.DealRecord{
		URL:            "https://spacenews.com/a",
		Source:         string(domain.SourceSpaceNews),
		Title:          "ICEYE raises $5M",
		PublishedDate:  "2024-05-01T00:00:00Z",
		SearchTarget:   "ICEYE",
		IsRelevant:     true,
		RelevanceScore: score(0.9),
		DealType:       domain.DealInvestment,
		Amount:         "5000000",
		Investors:      []string{"Acme"},
	}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := repo.FindByURL(ctx, rec.URL)
	if err != nil || !ok {
		t.Fatalf("FindByURL ok=%v err=%v", ok, err)
	}
	if got.Amount != "5000000" || got.Investors[0] != "Acme" || got.Score() != 0.9 {
		t.Fatalf("unexpected record: %+v", got)
	}

	rec.IsRelevant = false
	rec.Summary = "re-analyzed"
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	got, _, _ = repo.FindByURL(ctx, rec.URL)
	if got.IsRelevant || got.Summary != "re-analyzed" {
		t.Fatalf("expected last write to win, got %+v", got)
	}

	if _, ok, err := repo.FindByURL(ctx, "https://missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestDealRepositoryQueryDeals(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	ctx := context.Background()

	records := []domain.DealRecord{
		{URL: "u1", Source: "SpaceNews", PublishedDate: "2024-01-01T00:00:00Z", SearchTarget: "ICEYE, Rheinmetall", IsRelevant: true, DealType: domain.DealContract},
		{URL: "u2", Source: "SNAPI", PublishedDate: "2024-06-01T00:00:00Z", SearchTarget: "ICEYE", IsRelevant: true, DealType: domain.DealInvestment},
		{URL: "u3", Source: "SNAPI", PublishedDate: "2024-07-01T00:00:00Z", SearchTarget: "ICEYE", IsRelevant: false},
		{URL: "u4", Source: "SpaceNews", PublishedDate: "2024-08-01T00:00:00Z", SearchTarget: "Planet", IsRelevant: true, DealType: domain.DealMerger},
	}
	for _, rec := range records {
		if err := repo.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert %s: %v", rec.URL, err)
		}
	}

	got, err := repo.QueryDeals(ctx, domain.DealFilter{SearchTarget: "iceye"})
	if err != nil {
		t.Fatalf("QueryDeals: %v", err)
	}
	if len(got) != 2 || got[0].URL != "u2" || got[1].URL != "u1" {
		t.Fatalf("unexpected relevant iceye deals: %+v", urls(got))
	}

	got, err = repo.QueryDeals(ctx, domain.DealFilter{IncludeIrrelevant: true, Source: "SNAPI"})
	if err != nil {
		t.Fatalf("QueryDeals: %v", err)
	}
	if len(got) != 2 || got[0].URL != "u3" {
		t.Fatalf("unexpected snapi deals: %+v", urls(got))
	}

	got, err = repo.QueryDeals(ctx, domain.DealFilter{Limit: 1})
	if err != nil {
		t.Fatalf("QueryDeals: %v", err)
	}
	if len(got) != 1 || got[0].URL != "u4" {
		t.Fatalf("unexpected limited deals: %+v", urls(got))
	}
}

func TestNewDealRepositoryPlaceholders(t *testing.T) {
	t.Parallel()

	pg := NewDealRepository(nil, DialectPostgres)
	pg.now = func() time.Time { return time.Unix(0, 0) }
	query, _, err := pg.sb.Select("payload").From("deals").Where("url = ?", "x").ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(query, "$1") {
		t.Fatalf("expected dollar placeholders, got %s", query)
	}

	lite := NewDealRepository(nil, DialectSQLite)
	query, _, err = lite.sb.Select("payload").From("deals").Where("url = ?", "x").ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(query, "url = ?") {
		t.Fatalf("expected question placeholders, got %s", query)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, _, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func urls(recs []domain.DealRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.URL)
	}
	return out
}
