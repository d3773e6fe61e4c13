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

type techportProject struct {
	ProjectID   int    `json:"projectId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LastUpdated string `json:"lastUpdated"`
	StartDate   string `json:"startDateString"`
}

type techportSearch struct {
	Projects []techportProject `json:"projects"`
	Results  []techportProject `json:"results"`
}

// TechPortScanner searches NASA TechPort projects by company name.
type TechPortScanner struct {
	http   *HTTPFetcher
	logger *slog.Logger
}

var _ scanner.Scanner = (*TechPortScanner)(nil)

// NewTechPortScanner wires the shared HTTP fetcher.
func NewTechPortScanner(fetcher *HTTPFetcher, logger *slog.Logger) *TechPortScanner {
	return &TechPortScanner{http: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (t *TechPortScanner) Name() string {
	return "techport"
}

// Scan runs one search per target; the endpoint is not paginated.
func (t *TechPortScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawArticle, error) {
	base := strings.TrimRight(req.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("no base url for %s", req.Source)
	}

	limit := req.PerPage
	var results []domain.RawArticle
	seen := map[int]struct{}{}

	for _, target := range req.Targets {
		params := url.Values{}
		params.Set("searchQuery", target)

		body, err := t.http.Get(ctx, base+"/api/projects/search?"+params.Encode())
		if err != nil {
			return results, fmt.Errorf("%s search %q: %w", req.Source, target, err)
		}

		var decoded techportSearch
		if err := json.Unmarshal(body, &decoded); err != nil {
			return results, fmt.Errorf("%s search %q: decode: %w", req.Source, target, err)
		}

		projects := decoded.Projects
		if len(projects) == 0 {
			projects = decoded.Results
		}
		for i, project := range projects {
			if limit > 0 && i >= limit {
				break
			}
			if project.ProjectID == 0 {
				continue
			}
			if _, ok := seen[project.ProjectID]; ok {
				continue
			}
			seen[project.ProjectID] = struct{}{}

			date := project.LastUpdated
			if date == "" {
				date = project.StartDate
			}
			results = append(results, domain.RawArticle{
				Source:     req.Source,
				URL:        base + "/view/" + strconv.Itoa(project.ProjectID),
				Title:      strings.TrimSpace(project.Title),
				Date:       date,
				RawContent: project.Description,
			})
		}
	}

	if t.logger != nil {
		t.logger.Debug("techport scan done", "source", req.Source, "projects", len(results))
	}
	return results, nil
}
