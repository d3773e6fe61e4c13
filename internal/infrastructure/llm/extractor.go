package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

// Extractor implements ports.Analyzer on top of a chat completion API.
type Extractor struct {
	client Completer
	cfg    config.LLMConfig
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

var _ ports.Analyzer = (*Extractor)(nil)

// NewExtractor wires the completer with retry and prompt settings.
func NewExtractor(client Completer, cfg config.LLMConfig, logger *slog.Logger) *Extractor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 10 * time.Second
	}
	return &Extractor{
		client: client,
		cfg:    cfg,
		sleep:  sleepContext,
		logger: logger,
	}
}

// ResolveProvider picks the provider whose model prefix matches model. The
// configured default endpoint is used when none does.
func ResolveProvider(cfg config.LLMConfig, model string) config.LLMProviderConfig {
	lower := strings.ToLower(strings.TrimSpace(model))
	for _, p := range cfg.Providers {
		for _, prefix := range p.ModelPrefixes {
			if prefix != "" && strings.HasPrefix(lower, strings.ToLower(prefix)) {
				return p
			}
		}
	}
	return config.LLMProviderConfig{Name: "default", Endpoint: cfg.Endpoint}
}

// Analyze sends the article to the model and normalizes the reply. Rate
// limits are retried with exponential backoff up to MaxAttempts; any other
// failure ends the loop immediately.
func (e *Extractor) Analyze(ctx context.Context, article domain.Article, opts domain.AnalysisOptions) domain.Analysis {
	model := firstNonEmpty(opts.Model, e.cfg.Model)
	provider := ResolveProvider(e.cfg, model)
	req := ChatRequest{
		Endpoint: provider.Endpoint,
		Model:    model,
		APIKey:   firstNonEmpty(opts.APIKey, e.cfg.APIKey),
		Messages: []Message{
			{Role: "system", Content: BuildSystemPrompt(firstNonEmpty(opts.SystemPrompt, e.cfg.SystemPrompt), opts.Targets)},
			{Role: "user", Content: BuildUserMessage(article, e.cfg.MaxInputChars)},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		JSONMode:    true,
	}

	for attempt := 1; ; attempt++ {
		content, err := e.client.Complete(ctx, req)
		if err == nil {
			raw, perr := ParseJSONObject(content)
			if perr != nil {
				return degraded(article, domain.OutcomeFailed, attempt, fmt.Errorf("parse model output: %w", perr))
			}
			return domain.Analysis{
				Record:   domain.NormalizeExtraction(raw, article),
				Outcome:  domain.OutcomeSuccess,
				Attempts: attempt,
			}
		}

		if !IsRateLimited(err) {
			return degraded(article, domain.OutcomeFailed, attempt, err)
		}
		if attempt >= e.cfg.MaxAttempts {
			return degraded(article, domain.OutcomeExhausted, attempt,
				fmt.Errorf("rate limit persisted after %d attempts: %w", attempt, err))
		}

		wait := e.cfg.BackoffBase << (attempt - 1)
		e.debug("llm rate limited, backing off", "url", article.URL, "attempt", attempt, "wait", wait.String(), "provider", provider.Name)
		if serr := e.sleep(ctx, wait); serr != nil {
			return degraded(article, domain.OutcomeFailed, attempt, serr)
		}
	}
}

func degraded(article domain.Article, outcome domain.AnalysisOutcome, attempts int, err error) domain.Analysis {
	return domain.Analysis{
		Record:   domain.Irrelevant(article, "analysis failed: "+err.Error()),
		Outcome:  outcome,
		Attempts: attempts,
		Err:      err,
	}
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Debug(msg, args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
