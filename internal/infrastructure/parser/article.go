package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

const minParagraphChars = 40

type parsedPage struct {
	Title   string
	Date    string
	Section string
	Text    string
}

// ArticleFetcher downloads article pages and extracts title, date, section
// and body text. When the page cannot be fetched the stub content is used.
type ArticleFetcher struct {
	http   *HTTPFetcher
	logger *slog.Logger
}

var _ ports.ArticleFetcher = (*ArticleFetcher)(nil)

// NewArticleFetcher wires the shared HTTP fetcher.
func NewArticleFetcher(fetcher *HTTPFetcher, logger *slog.Logger) *ArticleFetcher {
	return &ArticleFetcher{http: fetcher, logger: logger}
}

// Fetch returns the parsed article. It only fails when neither the page nor
// the stub yields any text.
func (f *ArticleFetcher) Fetch(ctx context.Context, raw domain.RawArticle) (domain.Article, error) {
	article := domain.Article{
		Source:        raw.Source,
		URL:           raw.URL,
		Title:         strings.TrimSpace(raw.Title),
		PublishedDate: NormalizeDate(raw.Date),
		Text:          TextFromHTML(raw.RawContent),
	}

	body, err := f.http.Get(ctx, raw.URL)
	if err != nil {
		if ctx.Err() != nil {
			return article, ctx.Err()
		}
		if article.Text == "" {
			return article, fmt.Errorf("fetch %s: %w", raw.URL, err)
		}
		f.debug("using stub content", "url", raw.URL, "error", err)
		return article, nil
	}

	page := ParseArticleHTML(raw.URL, body)
	if page.Title != "" {
		article.Title = page.Title
	}
	if page.Date != "" {
		article.PublishedDate = NormalizeDate(page.Date)
	}
	article.Section = page.Section
	if page.Text != "" {
		article.Text = page.Text
	}

	if article.Text == "" {
		return article, fmt.Errorf("no text extracted from %s", raw.URL)
	}
	return article, nil
}

// ParseArticleHTML reads the h1 title, article meta tags and paragraphs of at
// least 40 characters inside <article> (or the whole page). When no paragraph
// qualifies it falls back to readability extraction.
func ParseArticleHTML(pageURL string, body []byte) parsedPage {
	var page parsedPage

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page
	}

	page.Title = collapseSpace(doc.Find("h1").First().Text())
	if page.Title == "" {
		page.Title = metaContent(doc, "og:title")
	}
	if page.Title == "" {
		page.Title = collapseSpace(doc.Find("title").First().Text())
	}

	page.Date = metaContent(doc, "article:published_time")
	if page.Date == "" {
		page.Date, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}
	page.Section = metaContent(doc, "article:section")

	scope := doc.Find("article")
	if scope.Length() == 0 {
		scope = doc.Selection
	}
	var paragraphs []string
	scope.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := collapseSpace(p.Text())
		if len(text) >= minParagraphChars {
			paragraphs = append(paragraphs, text)
		}
	})
	page.Text = strings.Join(paragraphs, "\n")

	if page.Text == "" {
		if parsedURL, err := url.Parse(pageURL); err == nil {
			rp := readability.NewParser()
			if extracted, err := rp.Parse(bytes.NewReader(body), parsedURL); err == nil {
				page.Text = collapseSpace(extracted.TextContent)
				if page.Title == "" {
					page.Title = collapseSpace(extracted.Title)
				}
			}
		}
	}

	return page
}

// TextFromHTML strips markup from feed or API content.
func TextFromHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	var parts []string
	doc.Find("p, li, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := collapseSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return collapseSpace(doc.Text())
	}
	return strings.Join(parts, "\n")
}

// NormalizeDate renders any recognizable date as RFC3339 in UTC.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parsed, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return value
	}
	return parsed.UTC().Format(time.RFC3339)
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[name=%q]`, property)).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (f *ArticleFetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
