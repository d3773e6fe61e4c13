package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/scanner"
)

func TestBuildWordPressURL(t *testing.T) {
	t.Parallel()

	u := buildWordPressURL("https://spacenews.com", "ICEYE", 2, scanner.Request{PerPage: 50, MinYear: 2024})
	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Path != "/wp-json/wp/v2/posts" {
		t.Fatalf("unexpected path: %s", parsed.Path)
	}

	q := parsed.Query()
	if q.Get("per_page") != "50" || q.Get("page") != "2" {
		t.Fatalf("unexpected paging: %s", parsed.RawQuery)
	}
	if q.Get("after") != "2024-01-01T00:00:00" {
		t.Fatalf("unexpected after: %s", q.Get("after"))
	}
	if q.Get("search") != "ICEYE" {
		t.Fatalf("unexpected search: %s", q.Get("search"))
	}
}

func TestWordPressScannerScan(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `[
				{"link": "%[1]s/iceye-raises", "date": "2024-03-01T10:00:00", "title": {"rendered": "ICEYE raises &#036;5M"}, "content": {"rendered": "<p>ICEYE raises money</p>"}},
				{"link": "https://elsewhere.com/x", "date": "2024-03-01T10:00:00", "title": {"rendered": "Off site"}, "content": {"rendered": ""}}
			]`, server.URL)
		case "2":
			fmt.Fprintf(w, `[{"link": "%[1]s/iceye-raises", "title": {"rendered": "dup"}}]`, server.URL)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	f, _ := newTestFetcher(server.Client())
	sc := NewWordPressScanner(f, nil)

	articles, err := sc.Scan(context.Background(), scanner.Request{
		Source:   domain.SourceSpaceNews,
		BaseURL:  server.URL,
		Targets:  []string{"ICEYE"},
		MaxPages: 5,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d: %+v", len(articles), articles)
	}
	if articles[0].Title != "ICEYE raises $5M" {
		t.Fatalf("unexpected title: %q", articles[0].Title)
	}
	if articles[0].Source != domain.SourceSpaceNews || articles[0].RawContent == "" {
		t.Fatalf("unexpected article: %+v", articles[0])
	}
}

func TestWordPressScannerKeepsPartialResultsOnLaterFailure(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprintf(w, `[{"link": "%s/a", "title": {"rendered": "A"}, "content": {"rendered": "<p>a</p>"}}]`, server.URL)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f, _ := newTestFetcher(server.Client())
	articles, err := NewWordPressScanner(f, nil).Scan(context.Background(), scanner.Request{
		Source:   domain.SourceSpaceWorks,
		BaseURL:  server.URL,
		MaxPages: 3,
	})
	if err == nil {
		t.Fatalf("expected error from failing page")
	}
	if len(articles) != 1 {
		t.Fatalf("expected partial result to be kept, got %d", len(articles))
	}
}

func TestSNAPIScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/v4/articles/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q.Get("published_at_gte") != "2023-01-01T00:00:00Z" {
			t.Errorf("unexpected published_at_gte %q", q.Get("published_at_gte"))
		}
		switch q.Get("offset") {
		case "0":
			_, _ = w.Write([]byte(`{"count": 2, "next": "more", "results": [{"id": 1, "title": "ICEYE wins contract", "url": "https://news.example/1", "summary": "ICEYE wins", "published_at": "2023-05-01T00:00:00Z"}]}`))
		default:
			_, _ = w.Write([]byte(`{"count": 2, "next": null, "results": [{"id": 2, "title": "Second", "url": "https://news.example/2", "summary": "s", "published_at": "2023-06-01T00:00:00Z"}]}`))
		}
	}))
	defer server.Close()

	f, _ := newTestFetcher(server.Client())
	articles, err := NewSNAPIScanner(f, nil).Scan(context.Background(), scanner.Request{
		Source:   domain.SourceSNAPI,
		BaseURL:  server.URL + "/v4",
		Targets:  []string{"ICEYE"},
		MinYear:  2023,
		MaxPages: 5,
		PerPage:  1,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].URL != "https://news.example/1" || articles[0].RawContent != "ICEYE wins" {
		t.Fatalf("unexpected first article: %+v", articles[0])
	}
}

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	feed := func(items string) string {
		return `<?xml version="1.0"?><rss version="2.0"><channel><title>Feed</title>` + items + `</channel></rss>`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		switch r.URL.Query().Get("paged") {
		case "":
			_, _ = w.Write([]byte(feed(`
				<item><title>ICEYE expands</title><link>https://esf.example/iceye</link><pubDate>Mon, 04 Mar 2024 10:00:00 +0000</pubDate><description>&lt;p&gt;ICEYE news&lt;/p&gt;</description></item>
				<item><title>Old news</title><link>https://esf.example/old</link><pubDate>Mon, 06 Mar 2017 10:00:00 +0000</pubDate><description>old</description></item>`)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f, _ := newTestFetcher(server.Client())
	articles, err := NewRSSScanner(f, nil).Scan(context.Background(), scanner.Request{
		Source:   domain.SourceEuropeanSpaceflight,
		BaseURL:  server.URL + "/feed/",
		MinYear:  2024,
		MaxPages: 3,
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Date != "2024-03-04T10:00:00Z" {
		t.Fatalf("unexpected date: %s", articles[0].Date)
	}
	if !strings.Contains(articles[0].RawContent, "ICEYE news") {
		t.Fatalf("unexpected content: %q", articles[0].RawContent)
	}
}

func TestTechPortScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("searchQuery") != "ICEYE" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"projects": [{"projectId": 42, "title": "SAR constellation", "description": "ICEYE SAR study", "lastUpdated": "2024-1-5"}]}`))
	}))
	defer server.Close()

	f, _ := newTestFetcher(server.Client())
	articles, err := NewTechPortScanner(f, nil).Scan(context.Background(), scanner.Request{
		Source:  domain.SourceNASATechPort,
		BaseURL: server.URL,
		Targets: []string{"ICEYE"},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(articles) != 1 || articles[0].URL != server.URL+"/view/42" {
		t.Fatalf("unexpected articles: %+v", articles)
	}
}
