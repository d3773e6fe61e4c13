package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/scanner"
)

// RSSScanner reads WordPress-style syndication feeds, paging with ?paged=N.
type RSSScanner struct {
	http   *HTTPFetcher
	logger *slog.Logger
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires the shared HTTP fetcher.
func NewRSSScanner(fetcher *HTTPFetcher, logger *slog.Logger) *RSSScanner {
	return &RSSScanner{http: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan returns feed items published in or after MinYear. Feeds have no
// server-side search, so relevance is left to the prefilter.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	if strings.TrimSpace(req.BaseURL) == "" {
		return nil, fmt.Errorf("no feed url for %s", req.Source)
	}

	fp := gofeed.NewParser()
	var results []domain.RawArticle
	seen := map[string]struct{}{}

	for page := 1; page <= req.Pages(); page++ {
		pageURL, err := feedPageURL(req.BaseURL, page)
		if err != nil {
			return results, err
		}

		body, err := r.http.Get(ctx, pageURL)
		if err != nil {
			if IsStatus(err, http.StatusNotFound) {
				break
			}
			return results, fmt.Errorf("%s page %d: %w", req.Source, page, err)
		}

		feed, err := fp.Parse(bytes.NewReader(body))
		if err != nil {
			return results, fmt.Errorf("%s page %d: parse feed: %w", req.Source, page, err)
		}
		if len(feed.Items) == 0 {
			break
		}

		for _, item := range feed.Items {
			if item == nil || item.Link == "" {
				continue
			}
			if req.MinYear > 0 && item.PublishedParsed != nil && item.PublishedParsed.Year() < req.MinYear {
				continue
			}
			if _, ok := seen[item.Link]; ok {
				continue
			}
			seen[item.Link] = struct{}{}

			content := item.Content
			if strings.TrimSpace(content) == "" {
				content = item.Description
			}
			results = append(results, domain.RawArticle{
				Source:     req.Source,
				URL:        item.Link,
				Title:      strings.TrimSpace(item.Title),
				Date:       itemDate(item),
				RawContent: content,
			})
		}
	}

	if r.logger != nil {
		r.logger.Debug("rss scan done", "source", req.Source, "articles", len(results))
	}
	return results, nil
}

func feedPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %s: %w", base, err)
	}
	if page > 1 {
		query := parsed.Query()
		query.Set("paged", strconv.Itoa(page))
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func itemDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}
