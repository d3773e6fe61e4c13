package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"SpaceDealScanner/internal/app"
	"SpaceDealScanner/internal/config"
	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/logging"
)

func openApplication(ctx context.Context) (*app.Application, error) {
	cfg := config.Load()
	// stdout carries command output; logs go to stderr.
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return app.New(ctx, cfg, logger)
}

// ServeAction runs the API until SIGINT or SIGTERM.
func ServeAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := openApplication(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	return application.Serve(ctx)
}

// ScrapeAction performs one synchronous run.
func ScrapeAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	req, err := scrapeRequestFromFlags(c)
	if err != nil {
		return err
	}

	application, err := openApplication(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	results, err := application.Scrape(ctx, req)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	if results == nil {
		results = []domain.DealRecord{}
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func scrapeRequestFromFlags(c *cli.Context) (domain.ScrapeRequest, error) {
	sources, err := parseSources(c.StringSlice("source"))
	if err != nil {
		return domain.ScrapeRequest{}, err
	}
	return domain.ScrapeRequest{
		TargetCompanies: c.String("targets"),
		Sources:         sources,
		AIModel:         c.String("model"),
		APIKey:          c.String("api-key"),
		SystemPrompt:    c.String("prompt"),
		MinYear:         c.Int("min-year"),
		MaxPages:        c.Int("max-pages"),
		ForceRescan:     c.Bool("force"),
	}, nil
}

// parseSources accepts repeated and comma-joined names; none means all.
func parseSources(values []string) ([]domain.SourceType, error) {
	var sources []domain.SourceType
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			src, err := domain.ParseSourceType(name)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
	}
	if len(sources) == 0 {
		return domain.AllSources(), nil
	}
	return sources, nil
}

// DealsAction prints persisted deals.
func DealsAction(c *cli.Context) error {
	application, err := openApplication(c.Context)
	if err != nil {
		return err
	}
	defer application.Close()

	deals, err := application.Repository().QueryDeals(c.Context, domain.DealFilter{
		SearchTarget:      c.String("target"),
		Source:            c.String("source"),
		IncludeIrrelevant: c.Bool("all"),
		Limit:             c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("failed to query deals: %w", err)
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(deals)
	}

	if len(deals) == 0 {
		fmt.Fprintln(out, "No deals found")
		return nil
	}

	fmt.Fprintf(out, "%-12s %-12s %-14s %-16s %-60s\n", "Date", "Type", "Source", "Amount", "Title")
	fmt.Fprintln(out, strings.Repeat("-", 118))
	for _, d := range deals {
		fmt.Fprintf(out, "%-12s %-12s %-14s %-16s %-60s\n",
			shorten(d.PublishedDate, 10),
			d.DealType,
			shorten(d.Source, 14),
			shorten(strings.TrimSpace(d.Amount+" "+d.Currency), 16),
			shorten(d.Title, 60),
		)
	}
	fmt.Fprintf(out, "\nTotal: %d deals\n", len(deals))
	return nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
