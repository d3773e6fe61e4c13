package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "spacedeals",
		Usage: "scan space industry news for corporate deals",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the optional cron schedule",
				Action: ServeAction,
			},
			{
				Name:  "scrape",
				Usage: "run one scan synchronously and print the relevant deals as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "targets", Aliases: []string{"t"}, Usage: "comma-separated target companies", Required: true},
					&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "provider name, repeatable (default: all)"},
					&cli.StringFlag{Name: "model", Usage: "LLM model name"},
					&cli.StringFlag{Name: "api-key", Usage: "LLM API key", EnvVars: []string{"LLM_API_KEY"}},
					&cli.StringFlag{Name: "prompt", Usage: "system prompt text or preset id (financial-controller, technical-officer)"},
					&cli.IntFlag{Name: "min-year", Usage: "skip articles published before this year"},
					&cli.IntFlag{Name: "max-pages", Usage: "pages to request per source"},
					&cli.BoolFlag{Name: "force", Usage: "ignore cached and stored results"},
				},
				Action: ScrapeAction,
			},
			{
				Name:  "deals",
				Usage: "list persisted deals",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "target", Usage: "search target substring"},
					&cli.StringFlag{Name: "source", Usage: "provider name"},
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "maximum rows"},
					&cli.BoolFlag{Name: "all", Usage: "include irrelevant records"},
					&cli.BoolFlag{Name: "json", Usage: "print JSON instead of a table"},
				},
				Action: DealsAction,
			},
		},
	}
}
