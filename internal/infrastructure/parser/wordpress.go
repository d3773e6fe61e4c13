package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/scanner"
)

const defaultPerPage = 20

type wpPost struct {
	Link  string `json:"link"`
	Date  string `json:"date"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
	Excerpt struct {
		Rendered string `json:"rendered"`
	} `json:"excerpt"`
}

// WordPressScanner queries the WordPress REST posts endpoint once per target.
type WordPressScanner struct {
	http   *HTTPFetcher
	logger *slog.Logger
}

var _ scanner.Scanner = (*WordPressScanner)(nil)

// NewWordPressScanner wires the shared HTTP fetcher.
func NewWordPressScanner(fetcher *HTTPFetcher, logger *slog.Logger) *WordPressScanner {
	return &WordPressScanner{http: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (w *WordPressScanner) Name() string {
	return "wordpress"
}

// Scan pages through /wp-json/wp/v2/posts until an empty page, a 400/404
// (page past the end) or the page budget. Links outside the site are dropped.
func (w *WordPressScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	base := strings.TrimRight(req.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("no base url for %s", req.Source)
	}

	queries := req.Targets
	if len(queries) == 0 {
		queries = []string{""}
	}

	var results []domain.RawArticle
	seen := map[string]struct{}{}

	for _, query := range queries {
		for page := 1; page <= req.Pages(); page++ {
			pageURL := buildWordPressURL(base, query, page, req)

			body, err := w.http.Get(ctx, pageURL)
			if err != nil {
				if IsStatus(err, http.StatusBadRequest, http.StatusNotFound) {
					break
				}
				return results, fmt.Errorf("%s page %d: %w", req.Source, page, err)
			}

			var posts []wpPost
			if err := json.Unmarshal(body, &posts); err != nil {
				return results, fmt.Errorf("%s page %d: decode posts: %w", req.Source, page, err)
			}
			if len(posts) == 0 {
				break
			}

			for _, post := range posts {
				if !strings.HasPrefix(post.Link, base) {
					continue
				}
				if _, ok := seen[post.Link]; ok {
					continue
				}
				seen[post.Link] = struct{}{}

				content := post.Content.Rendered
				if strings.TrimSpace(content) == "" {
					content = post.Excerpt.Rendered
				}
				results = append(results, domain.RawArticle{
					Source:     req.Source,
					URL:        post.Link,
					Title:      html.UnescapeString(strings.TrimSpace(post.Title.Rendered)),
					Date:       post.Date,
					RawContent: content,
				})
			}
			w.debug("wordpress page scanned", "source", req.Source, "query", query, "page", page, "posts", len(posts))
		}
	}

	return results, nil
}

func buildWordPressURL(base, query string, page int, req scanner.Request) string {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	if req.MinYear > 0 {
		params.Set("after", fmt.Sprintf("%d-01-01T00:00:00", req.MinYear))
	}
	if query != "" {
		params.Set("search", query)
	}
	return base + "/wp-json/wp/v2/posts?" + params.Encode()
}

func (w *WordPressScanner) debug(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
