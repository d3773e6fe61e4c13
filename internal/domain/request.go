package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ScrapeRequest configures a single pipeline run.
type ScrapeRequest struct {
	TargetCompanies string       `json:"target_companies" yaml:"targetCompanies"`
	Sources         []SourceType `json:"sources" yaml:"sources"`
	AIModel         string       `json:"ai_model,omitempty" yaml:"aiModel"`
	APIKey          string       `json:"api_key,omitempty" yaml:"apiKey"`
	SystemPrompt    string       `json:"system_prompt,omitempty" yaml:"systemPrompt"`
	MinYear         int          `json:"min_year,omitempty" yaml:"minYear"`
	MaxPages        int          `json:"max_pages,omitempty" yaml:"maxPages"`
	ForceRescan     bool         `json:"force_rescan,omitempty" yaml:"forceRescan"`
}

// Targets splits the comma-joined company list, dropping blanks.
func (r ScrapeRequest) Targets() []string {
	var targets []string
	for _, part := range strings.Split(r.TargetCompanies, ",") {
		if t := strings.TrimSpace(part); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// SearchTarget is the normalized label stored with every record of the run.
func (r ScrapeRequest) SearchTarget() string {
	return strings.Join(r.Targets(), ", ")
}

// Validate checks the request shape. Credentials are checked by the runner,
// which knows about configured fallbacks.
func (r ScrapeRequest) Validate() error {
	var errs []error
	if len(r.Targets()) == 0 {
		errs = append(errs, errors.New("target_companies is empty"))
	}
	if len(r.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	for _, src := range r.Sources {
		if _, err := ParseSourceType(string(src)); err != nil {
			errs = append(errs, err)
		}
	}
	if r.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max_pages must not be negative, got %d", r.MaxPages))
	}
	return errors.Join(errs...)
}

// AnalysisOptions carries the per-run knobs the extractor needs.
type AnalysisOptions struct {
	Model        string
	APIKey       string
	SystemPrompt string
	Targets      []string
}

// AnalysisOutcome is the terminal state of one extraction attempt loop.
type AnalysisOutcome string

const (
	OutcomeSuccess   AnalysisOutcome = "success"
	OutcomeExhausted AnalysisOutcome = "exhausted"
	OutcomeFailed    AnalysisOutcome = "failed"
)

// Analysis is the result of extracting one article. Record is always usable:
// on exhausted or failed outcomes it is a negative record with a diagnostic.
type Analysis struct {
	Record   DealRecord
	Outcome  AnalysisOutcome
	Attempts int
	Err      error
}
