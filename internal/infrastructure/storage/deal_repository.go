package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

// Dialect selects placeholder style and column types.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Open connects to the configured database and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(cfg.Driver)))
	switch dialect {
	case DialectPostgres, DialectSQLite:
	case "":
		dialect = DialectSQLite
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(string(dialect), cfg.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, dialect, nil
}

// DealRepository persists deal records into Postgres or SQLite. Indexed scalar
// columns mirror the JSON payload so filtered queries never decode it.
type DealRepository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.DealRepository = (*DealRepository)(nil)

// NewDealRepository wires a sql.DB implementation.
func NewDealRepository(db *sql.DB, dialect Dialect) *DealRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return &DealRepository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the deals table and its indexes when missing.
func (r *DealRepository) Migrate(ctx context.Context) error {
	boolType, floatType, payloadType, timeType, nowExpr := "INTEGER", "REAL", "TEXT", "TIMESTAMP", "CURRENT_TIMESTAMP"
	if r.dialect == DialectPostgres {
		boolType, floatType, payloadType, timeType, nowExpr = "BOOLEAN", "DOUBLE PRECISION", "JSONB", "TIMESTAMPTZ", "NOW()"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deals (
			url TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			published_date TEXT NOT NULL DEFAULT '',
			section TEXT NOT NULL DEFAULT '',
			is_relevant %[1]s NOT NULL,
			relevance_score %[2]s,
			deal_type TEXT NOT NULL DEFAULT '',
			search_target TEXT NOT NULL DEFAULT '',
			payload %[3]s NOT NULL,
			created_at %[4]s NOT NULL DEFAULT %[5]s,
			updated_at %[4]s NOT NULL DEFAULT %[5]s
		)`, boolType, floatType, payloadType, timeType, nowExpr),
		`CREATE INDEX IF NOT EXISTS idx_deals_is_relevant ON deals (is_relevant)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_source ON deals (source)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_search_target ON deals (search_target)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_published_date ON deals (published_date)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate deals: %w", err)
		}
	}
	return nil
}

// FindByURL returns the stored record for url.
func (r *DealRepository) FindByURL(ctx context.Context, url string) (domain.DealRecord, bool, error) {
	query, args, err := r.sb.Select("payload").From("deals").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return domain.DealRecord{}, false, fmt.Errorf("build find query: %w", err)
	}

	var payload []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DealRecord{}, false, nil
	}
	if err != nil {
		return domain.DealRecord{}, false, fmt.Errorf("find deal: %w", err)
	}

	var rec domain.DealRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.DealRecord{}, false, fmt.Errorf("decode deal payload: %w", err)
	}
	return rec, true, nil
}

// Upsert inserts the record or overwrites the row sharing its URL.
func (r *DealRepository) Upsert(ctx context.Context, record domain.DealRecord) error {
	if record.URL == "" {
		return errors.New("upsert deal: empty url")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode deal payload: %w", err)
	}

	now := r.now()
	query, args, err := r.sb.Insert("deals").
		Columns("url", "source", "title", "published_date", "section", "is_relevant",
			"relevance_score", "deal_type", "search_target", "payload", "created_at", "updated_at").
		Values(record.URL, record.Source, record.Title, record.PublishedDate, record.Section, record.IsRelevant,
			record.RelevanceScore, string(record.DealType), record.SearchTarget, string(payload), now, now).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			published_date = EXCLUDED.published_date,
			section = EXCLUDED.section,
			is_relevant = EXCLUDED.is_relevant,
			relevance_score = EXCLUDED.relevance_score,
			deal_type = EXCLUDED.deal_type,
			search_target = EXCLUDED.search_target,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert deal: %w", err)
	}
	return nil
}

// QueryDeals lists records newest first. SearchTarget matches as a
// case-insensitive substring of the stored search target.
func (r *DealRepository) QueryDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealRecord, error) {
	q := r.sb.Select("payload").From("deals").OrderBy("published_date DESC", "updated_at DESC")
	if !filter.IncludeIrrelevant {
		q = q.Where(sq.Eq{"is_relevant": true})
	}
	if target := strings.TrimSpace(filter.SearchTarget); target != "" {
		q = q.Where("LOWER(search_target) LIKE ?", "%"+strings.ToLower(target)+"%")
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		q = q.Where(sq.Eq{"source": source})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build deals query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}

	var result []domain.DealRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		var rec domain.DealRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode deal payload: %w", err)
		}
		result = append(result, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}
