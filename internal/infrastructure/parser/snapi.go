package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/scanner"
)

type snapiPage struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		NewsSite    string `json:"news_site"`
		Summary     string `json:"summary"`
		PublishedAt string `json:"published_at"`
	} `json:"results"`
}

// SNAPIScanner queries the Spaceflight News API v4 articles endpoint.
type SNAPIScanner struct {
	http   *HTTPFetcher
	logger *slog.Logger
}

var _ scanner.Scanner = (*SNAPIScanner)(nil)

// NewSNAPIScanner wires the shared HTTP fetcher.
func NewSNAPIScanner(fetcher *HTTPFetcher, logger *slog.Logger) *SNAPIScanner {
	return &SNAPIScanner{http: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *SNAPIScanner) Name() string {
	return "snapi"
}

// Scan searches once per target with limit/offset paging, stopping on an
// empty page or when the API reports no next page.
func (s *SNAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	base := strings.TrimRight(req.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("no base url for %s", req.Source)
	}

	limit := req.PerPage
	if limit <= 0 {
		limit = defaultPerPage
	}

	queries := req.Targets
	if len(queries) == 0 {
		queries = []string{""}
	}

	var results []domain.RawArticle
	seen := map[string]struct{}{}

	for _, query := range queries {
		for page := 0; page < req.Pages(); page++ {
			params := url.Values{}
			params.Set("limit", strconv.Itoa(limit))
			params.Set("offset", strconv.Itoa(page*limit))
			params.Set("ordering", "-published_at")
			if query != "" {
				params.Set("search", query)
			}
			if req.MinYear > 0 {
				params.Set("published_at_gte", fmt.Sprintf("%d-01-01T00:00:00Z", req.MinYear))
			}

			body, err := s.http.Get(ctx, base+"/articles/?"+params.Encode())
			if err != nil {
				return results, fmt.Errorf("%s offset %d: %w", req.Source, page*limit, err)
			}

			var decoded snapiPage
			if err := json.Unmarshal(body, &decoded); err != nil {
				return results, fmt.Errorf("%s offset %d: decode: %w", req.Source, page*limit, err)
			}

			for _, item := range decoded.Results {
				if item.URL == "" {
					continue
				}
				if _, ok := seen[item.URL]; ok {
					continue
				}
				seen[item.URL] = struct{}{}
				results = append(results, domain.RawArticle{
					Source:     req.Source,
					URL:        item.URL,
					Title:      strings.TrimSpace(item.Title),
					Date:       item.PublishedAt,
					RawContent: item.Summary,
				})
			}

			if len(decoded.Results) == 0 || decoded.Next == nil {
				break
			}
		}
	}

	if s.logger != nil {
		s.logger.Debug("snapi scan done", "source", req.Source, "articles", len(results))
	}
	return results, nil
}
