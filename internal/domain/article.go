package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SourceType enumerates the news providers a run can discover articles from.
type SourceType string

const (
	SourceSpaceNews           SourceType = "SpaceNews"
	SourceSNAPI               SourceType = "SNAPI"
	SourceSpaceWorks          SourceType = "SpaceWorks"
	SourceEuropeanSpaceflight SourceType = "European Spaceflight"
	SourceViaSatellite        SourceType = "Via Satellite"
	SourceNASATechPort        SourceType = "NASA TechPort"
)

// AllSources lists every known provider in display order.
func AllSources() []SourceType {
	return []SourceType{
		SourceSpaceNews,
		SourceSNAPI,
		SourceSpaceWorks,
		SourceEuropeanSpaceflight,
		SourceViaSatellite,
		SourceNASATechPort,
	}
}

// ParseSourceType matches a provider name case-insensitively.
func ParseSourceType(value string) (SourceType, error) {
	value = strings.TrimSpace(value)
	for _, src := range AllSources() {
		if strings.EqualFold(string(src), value) {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", value)
}

// Slug returns a lowercase token usable in subjects and file names.
func (s SourceType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(s))), " ", "-")
}

// RawArticle is a candidate stub returned by a source adapter.
type RawArticle struct {
	Source     SourceType
	URL        string
	Title      string
	Date       string
	RawContent string
}

// Article is the fetched body handed to the prefilter and the extractor.
type Article struct {
	Source        SourceType
	URL           string
	Title         string
	PublishedDate string
	Section       string
	Text          string
}

// SearchText concatenates everything the prefilter is allowed to look at.
func (a Article) SearchText() string {
	return strings.Join([]string{a.Title, a.Section, a.Text}, "\n")
}

// PublishedYear extracts the year of PublishedDate when it is known.
func (a Article) PublishedYear() (int, bool) {
	date := strings.TrimSpace(a.PublishedDate)
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.Year(), true
	}
	if len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil && year > 1900 {
			return year, true
		}
	}
	return 0, false
}

// SourceBatch is one provider's discovery outcome. Err is informational:
// the batch is empty or partial but the run continues.
type SourceBatch struct {
	Source   SourceType
	Articles []RawArticle
	Err      error
}
