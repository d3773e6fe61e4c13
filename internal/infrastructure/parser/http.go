package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"SpaceDealScanner/internal/config"
)

const maxBodyBytes = 10 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.URL, e.Status)
}

// IsStatus reports whether err is a StatusError with one of the given codes.
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.StatusCode == code {
			return true
		}
	}
	return false
}

// HTTPFetcher performs GET requests with bounded retries. Network errors and
// 5xx responses back off linearly, 429 waits a fixed cooldown, other 4xx
// responses fail immediately.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	attempts  int
	backoff   time.Duration
	cooldown  time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewHTTPFetcher builds a fetcher from the shared source HTTP settings.
func NewHTTPFetcher(cfg config.SourceHTTPConfig, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		attempts:  attempts,
		backoff:   cfg.Backoff,
		cooldown:  cfg.Cooldown429,
		sleep:     sleepContext,
		logger:    logger,
	}
}

// ErrInvalidURL marks a URL that can never be fetched; it is not retried.
var ErrInvalidURL = errors.New("invalid source url")

// Get returns the body of a successful response.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := checkURL(rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		body, err := f.once(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var wait time.Duration
		var se *StatusError
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, ErrInvalidURL):
			return nil, err
		case errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests:
			wait = f.cooldown
		case errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError:
			return nil, err
		default:
			wait = f.backoff * time.Duration(attempt)
		}

		if attempt == f.attempts {
			break
		}
		f.debug("retrying source request", "url", rawURL, "attempt", attempt, "wait", wait, "error", err)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("get %s after %d attempts: %w", rawURL, f.attempts, lastErr)
}

func (f *HTTPFetcher) once(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrInvalidURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

func checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}

func (f *HTTPFetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
