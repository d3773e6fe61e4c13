package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
)

type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []ChatRequest
}

func (s *scriptedCompleter) Complete(_ context.Context, req ChatRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("unexpected call")
}

func newTestExtractor(client Completer) (*Extractor, *[]time.Duration) {
	var waits []time.Duration
	ex := NewExtractor(client, config.LLMConfig{
		Endpoint:      "https://llm.example/v1/chat/completions",
		Model:         "mistral-large-latest",
		APIKey:        "key",
		MaxInputChars: 100,
		MaxTokens:     900,
		MaxAttempts:   3,
		BackoffBase:   10 * time.Second,
		Providers: []config.LLMProviderConfig{
			{Name: "groq", Endpoint: "https://groq.example/v1/chat/completions", ModelPrefixes: []string{"llama"}, Strict: true},
		},
	}, nil)
	ex.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return ex, &waits
}

var testArticle = domain.Article{
	Source:        domain.SourceSpaceNews,
	URL:           "https://spacenews.com/iceye-raises",
	Title:         "ICEYE raises $65M",
	PublishedDate: "2024-03-01T00:00:00Z",
	Section:       "Business",
	Text:          "ICEYE closed a $65 million round led by Acme Ventures.",
}

const dealReply = `{"is_relevant": true, "relevance_score": 0.92, "deal_type": "investment", "deal_status": "completed", "amount": 65000000, "currency": "USD", "investors": ["Acme Ventures"], "summary": "ICEYE raised $65M."}`

func TestAnalyzeRetriesRateLimitsWithExponentialBackoff(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{
		errs:    []error{&RateLimitError{Body: "slow down"}, &RateLimitError{Body: "slow down"}, nil},
		replies: []string{"", "", dealReply},
	}
	ex, waits := newTestExtractor(client)

	got := ex.Analyze(context.Background(), testArticle, domain.AnalysisOptions{Targets: []string{"ICEYE"}})
	if got.Outcome != domain.OutcomeSuccess || got.Attempts != 3 {
		t.Fatalf("unexpected outcome %s after %d attempts: %v", got.Outcome, got.Attempts, got.Err)
	}
	if len(*waits) != 2 || (*waits)[0] != 10*time.Second || (*waits)[1] != 20*time.Second {
		t.Fatalf("unexpected waits: %v", *waits)
	}
	if !got.Record.IsRelevant || got.Record.DealType != domain.DealInvestment || got.Record.Amount != "65000000" {
		t.Fatalf("unexpected record: %+v", got.Record)
	}
	if got.Record.URL != testArticle.URL || got.Record.Source != string(domain.SourceSpaceNews) {
		t.Fatalf("metadata not carried over: %+v", got.Record)
	}
}

func TestAnalyzeExhaustsRateLimit(t *testing.T) {
	t.Parallel()

	rl := &RateLimitError{Body: "quota"}
	client := &scriptedCompleter{errs: []error{rl, rl, rl}}
	ex, waits := newTestExtractor(client)

	got := ex.Analyze(context.Background(), testArticle, domain.AnalysisOptions{})
	if got.Outcome != domain.OutcomeExhausted || got.Attempts != 3 {
		t.Fatalf("expected exhausted after 3 attempts, got %s/%d", got.Outcome, got.Attempts)
	}
	if len(*waits) != 2 {
		t.Fatalf("expected two waits, got %v", *waits)
	}
	if got.Record.IsRelevant || !strings.HasPrefix(got.Record.Summary, "analysis failed:") {
		t.Fatalf("expected degraded record, got %+v", got.Record)
	}
	if got.Record.URL != testArticle.URL {
		t.Fatalf("degraded record lost metadata: %+v", got.Record)
	}
}

func TestAnalyzeDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{errs: []error{&APIError{StatusCode: 401, Status: "401 Unauthorized", Body: "bad key"}}}
	ex, waits := newTestExtractor(client)

	got := ex.Analyze(context.Background(), testArticle, domain.AnalysisOptions{})
	if got.Outcome != domain.OutcomeFailed || got.Attempts != 1 || len(*waits) != 0 {
		t.Fatalf("expected single failed attempt, got %s/%d waits=%v", got.Outcome, got.Attempts, *waits)
	}
	var apiErr *APIError
	if !errors.As(got.Err, &apiErr) {
		t.Fatalf("expected APIError, got %v", got.Err)
	}
}

func TestAnalyzeUnparseableReplyDegrades(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{replies: []string{"I could not find a deal."}}
	ex, _ := newTestExtractor(client)

	got := ex.Analyze(context.Background(), testArticle, domain.AnalysisOptions{})
	if got.Outcome != domain.OutcomeFailed || got.Record.IsRelevant {
		t.Fatalf("expected failed outcome, got %+v", got)
	}
}

func TestAnalyzeBuildsRequestFromOptions(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{replies: []string{dealReply}}
	ex, _ := newTestExtractor(client)

	ex.Analyze(context.Background(), testArticle, domain.AnalysisOptions{
		Model:   "llama-3.3-70b",
		APIKey:  "run-key",
		Targets: []string{"ICEYE", "Rheinmetall"},
	})

	if len(client.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(client.requests))
	}
	req := client.requests[0]
	if req.Endpoint != "https://groq.example/v1/chat/completions" || req.APIKey != "run-key" || !req.JSONMode {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "Target companies: ICEYE, Rheinmetall.") {
		t.Fatalf("system prompt misses targets: %s", req.Messages[0].Content)
	}
	if !strings.HasPrefix(req.Messages[1].Content, "URL: https://spacenews.com/iceye-raises\nTITLE: ICEYE raises $65M\n") {
		t.Fatalf("unexpected user message: %s", req.Messages[1].Content)
	}
}

func TestAnalyzeStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	client := &scriptedCompleter{errs: []error{&RateLimitError{}, &RateLimitError{}}}
	ex, _ := newTestExtractor(client)
	ex.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	got := ex.Analyze(context.Background(), testArticle, domain.AnalysisOptions{})
	if got.Outcome != domain.OutcomeFailed || !errors.Is(got.Err, context.Canceled) {
		t.Fatalf("expected cancelled failure, got %s %v", got.Outcome, got.Err)
	}
}

func TestResolveProviderFallsBackToDefault(t *testing.T) {
	t.Parallel()

	cfg := config.LLMConfig{
		Endpoint: "https://default.example",
		Providers: []config.LLMProviderConfig{
			{Name: "openai", Endpoint: "https://openai.example", ModelPrefixes: []string{"gpt-", "o1"}},
		},
	}
	if p := ResolveProvider(cfg, "GPT-4o-mini"); p.Name != "openai" {
		t.Fatalf("expected openai provider, got %+v", p)
	}
	if p := ResolveProvider(cfg, "mistral-small"); p.Endpoint != "https://default.example" {
		t.Fatalf("expected default endpoint, got %+v", p)
	}
}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&RateLimitError{}, true},
		{errors.New("Rate limit reached for requests"), true},
		{errors.New("wrapped: too many requests"), true},
		{&APIError{Status: "500 Internal Server Error", Body: "boom"}, false},
	}
	for _, tc := range cases {
		if got := IsRateLimited(tc.err); got != tc.want {
			t.Fatalf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
