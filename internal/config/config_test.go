package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"SpaceDealScanner/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(llmAPIKeyEnv, "")
	t.Setenv(mistralAPIKeyEnv, "")

	cfg := Load()

	if cfg.LLM.MaxInputChars != 18000 || cfg.LLM.MaxAttempts != 3 || cfg.LLM.BackoffBase != 10*time.Second {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Pipeline.DiscoveryWorkers != 5 || cfg.Pipeline.StatusLogLimit != 50 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	for _, src := range domain.AllSources() {
		if _, ok := FindSite(cfg.Sites, src); !ok {
			t.Fatalf("missing default site for %s", src)
		}
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("unexpected location: %s", cfg.Scheduler.Location())
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
llm:
  model: gpt-4o-mini
  backoffBase: 2s
pipeline:
  itemDelay: 100ms
scheduler:
  timezone: Europe/Rome
  request:
    targetCompanies: ICEYE
    sources: [SpaceNews]
sites:
  - name: SpaceNews
    scanner: wordpress
    baseUrl: http://localhost:9999
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(llmAPIKeyEnv, "secret")
	t.Setenv(databaseDSNEnv, "postgres://localhost/deals")
	t.Setenv(databaseDriverEnv, "postgres")

	cfg := Load()

	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.BackoffBase != 2*time.Second {
		t.Fatalf("file values not applied: %+v", cfg.LLM)
	}
	if cfg.LLM.MaxInputChars != 18000 {
		t.Fatalf("default lost after partial file: %d", cfg.LLM.MaxInputChars)
	}
	if cfg.Pipeline.ItemDelay != 100*time.Millisecond {
		t.Fatalf("unexpected item delay: %s", cfg.Pipeline.ItemDelay)
	}
	if cfg.LLM.APIKey != "secret" || cfg.Database.Driver != "postgres" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.LLM, cfg.Database)
	}
	if len(cfg.Sites) != 1 || cfg.Sites[0].BaseURL != "http://localhost:9999" {
		t.Fatalf("unexpected sites: %+v", cfg.Sites)
	}
	if cfg.Scheduler.Request.TargetCompanies != "ICEYE" || len(cfg.Scheduler.Request.Sources) != 1 {
		t.Fatalf("unexpected scheduled request: %+v", cfg.Scheduler.Request)
	}
	if cfg.Scheduler.Location().String() != "Europe/Rome" {
		t.Fatalf("unexpected location: %s", cfg.Scheduler.Location())
	}
}
