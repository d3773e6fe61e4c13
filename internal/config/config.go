package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/pkg/logger"
)

var bootLog = logger.Bootstrap("config")

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "SPACEDEALS_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	llmAPIKeyEnv      = "LLM_API_KEY"
	mistralAPIKeyEnv  = "MISTRAL_API_KEY"
	llmModelEnv       = "LLM_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	natsURLEnv        = "NATS_URL"
	httpAddrEnv       = "HTTP_ADDR"
	logLevelEnv       = "LOG_LEVEL"
	cacheDirEnv       = "CACHE_DIR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Cache         CacheConfig        `yaml:"cache"`
	LLM           LLMConfig          `yaml:"llm"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	SourceHTTP    SourceHTTPConfig   `yaml:"sourceHttp"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scoring       ScoringConfig      `yaml:"scoring"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// DatabaseConfig describes the SQL store. Driver is postgres or sqlite.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig points at the on-disk result cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// LLMConfig defines how to contact the chat completion API.
type LLMConfig struct {
	Endpoint      string              `yaml:"endpoint"`
	Model         string              `yaml:"model"`
	APIKey        string              `yaml:"apiKey"`
	SystemPrompt  string              `yaml:"systemPrompt"`
	Timeout       time.Duration       `yaml:"timeout"`
	MaxInputChars int                 `yaml:"maxInputChars"`
	MaxTokens     int                 `yaml:"maxTokens"`
	Temperature   float64             `yaml:"temperature"`
	MaxAttempts   int                 `yaml:"maxAttempts"`
	BackoffBase   time.Duration       `yaml:"backoffBase"`
	Providers     []LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig maps model name prefixes to an OpenAI-compatible endpoint.
// Strict providers get the longer inter-item delay.
type LLMProviderConfig struct {
	Name          string   `yaml:"name"`
	Endpoint      string   `yaml:"endpoint"`
	ModelPrefixes []string `yaml:"modelPrefixes"`
	Strict        bool     `yaml:"strict"`
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	DiscoveryWorkers int           `yaml:"discoveryWorkers"`
	ItemDelay        time.Duration `yaml:"itemDelay"`
	StrictItemDelay  time.Duration `yaml:"strictItemDelay"`
	RunTimeout       time.Duration `yaml:"runTimeout"`
	StatusLogLimit   int           `yaml:"statusLogLimit"`
	DefaultMinYear   int           `yaml:"defaultMinYear"`
	DefaultMaxPages  int           `yaml:"defaultMaxPages"`
}

// SourceHTTPConfig is shared by every source adapter.
type SourceHTTPConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Attempts    int           `yaml:"attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	Cooldown429 time.Duration `yaml:"cooldown429"`
	UserAgent   string        `yaml:"userAgent"`
}

// SchedulerConfig defines when unattended runs happen and with what request.
type SchedulerConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	CronExpression string               `yaml:"cronExpression"`
	Timezone       string               `yaml:"timezone"`
	Request        domain.ScrapeRequest `yaml:"request"`
	location       *time.Location       `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	NATS     NATSConfig     `yaml:"nats"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// NATSConfig enables deal events when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// ScoringConfig parametrizes the per-company interest score.
type ScoringConfig struct {
	Weight          float64 `yaml:"weight"`
	AmountThreshold float64 `yaml:"amountThreshold"`
	Bonus           float64 `yaml:"bonus"`
	TopN            int     `yaml:"topN"`
}

// SiteConfig binds a provider to its scanner strategy.
type SiteConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	BaseURL string            `yaml:"baseUrl"`
	PerPage int               `yaml:"perPage"`
	Options map[string]string `yaml:"options"`
}

// FindSite returns the configured site for a provider.
func FindSite(sites []SiteConfig, source domain.SourceType) (SiteConfig, bool) {
	for _, site := range sites {
		if strings.EqualFold(site.Name, string(source)) {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			bootLog.Printf("cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				bootLog.Printf("cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroValues()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(natsURLEnv); v != "" {
		c.Notifications.NATS.URL = v
	}

	if v := os.Getenv(mistralAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(cacheDirEnv); v != "" {
		c.Cache.Dir = v
	}
}

// fillZeroValues restores defaults that a partial YAML file zeroed out.
func (c *Config) fillZeroValues() {
	def := defaultConfig()

	if len(c.Sites) == 0 {
		c.Sites = def.Sites
	}
	if len(c.LLM.Providers) == 0 {
		c.LLM.Providers = def.LLM.Providers
	}
	if c.LLM.MaxAttempts <= 0 {
		c.LLM.MaxAttempts = def.LLM.MaxAttempts
	}
	if c.LLM.MaxInputChars <= 0 {
		c.LLM.MaxInputChars = def.LLM.MaxInputChars
	}
	if c.Pipeline.DiscoveryWorkers <= 0 {
		c.Pipeline.DiscoveryWorkers = def.Pipeline.DiscoveryWorkers
	}
	if c.Pipeline.StatusLogLimit <= 0 {
		c.Pipeline.StatusLogLimit = def.Pipeline.StatusLogLimit
	}
	if c.SourceHTTP.Attempts <= 0 {
		c.SourceHTTP.Attempts = def.SourceHTTP.Attempts
	}
	if c.Scoring.TopN <= 0 {
		c.Scoring.TopN = def.Scoring.TopN
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		bootLog.Printf("unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		HTTP:     HTTPConfig{Addr: ":8000", AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:spacedeals.db?_pragma=busy_timeout(5000)"},
		Cache:    CacheConfig{Dir: "data/cache"},
		LLM: LLMConfig{
			Endpoint:      "https://api.mistral.ai/v1/chat/completions",
			Model:         "mistral-large-latest",
			Timeout:       60 * time.Second,
			MaxInputChars: 18000,
			MaxTokens:     900,
			Temperature:   0,
			MaxAttempts:   3,
			BackoffBase:   10 * time.Second,
			Providers: []LLMProviderConfig{
				{
					Name:          "mistral",
					Endpoint:      "https://api.mistral.ai/v1/chat/completions",
					ModelPrefixes: []string{"mistral", "open-mistral", "ministral", "codestral", "pixtral"},
				},
				{
					Name:          "openai",
					Endpoint:      "https://api.openai.com/v1/chat/completions",
					ModelPrefixes: []string{"gpt-", "o1", "o3", "o4"},
				},
				{
					Name:          "gemini",
					Endpoint:      "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
					ModelPrefixes: []string{"gemini"},
					Strict:        true,
				},
				{
					Name:          "groq",
					Endpoint:      "https://api.groq.com/openai/v1/chat/completions",
					ModelPrefixes: []string{"llama", "mixtral", "gemma", "qwen"},
					Strict:        true,
				},
			},
		},
		Pipeline: PipelineConfig{
			DiscoveryWorkers: 5,
			ItemDelay:        700 * time.Millisecond,
			StrictItemDelay:  4 * time.Second,
			RunTimeout:       time.Hour,
			StatusLogLimit:   50,
			DefaultMinYear:   2024,
			DefaultMaxPages:  3,
		},
		SourceHTTP: SourceHTTPConfig{
			Timeout:     30 * time.Second,
			Attempts:    3,
			Backoff:     2 * time.Second,
			Cooldown429: 30 * time.Second,
			UserAgent:   "Mozilla/5.0 (compatible; SpaceDealScanner/1.0)",
		},
		Scheduler: SchedulerConfig{
			Enabled:        false,
			CronExpression: "0 6 * * *",
			Timezone:       defaultTimezone,
			location:       tz,
			Request: domain.ScrapeRequest{
				TargetCompanies: "ICEYE, Rheinmetall",
				Sources:         []domain.SourceType{domain.SourceSpaceNews, domain.SourceSNAPI},
				MaxPages:        2,
			},
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
			NATS:     NATSConfig{URL: "", SubjectPrefix: "deals"},
		},
		Scoring: ScoringConfig{Weight: 10, AmountThreshold: 10_000_000, Bonus: 2, TopN: 20},
		Sites: []SiteConfig{
			{Name: string(domain.SourceSpaceNews), Scanner: "wordpress", BaseURL: "https://spacenews.com", PerPage: 20},
			{Name: string(domain.SourceSNAPI), Scanner: "snapi", BaseURL: "https://api.spaceflightnewsapi.net/v4", PerPage: 20},
			{Name: string(domain.SourceSpaceWorks), Scanner: "wordpress", BaseURL: "https://www.spaceworks.aero", PerPage: 20},
			{Name: string(domain.SourceEuropeanSpaceflight), Scanner: "rss", BaseURL: "https://europeanspaceflight.com/feed/"},
			{Name: string(domain.SourceViaSatellite), Scanner: "rss", BaseURL: "https://www.satellitetoday.com/feed/"},
			{Name: string(domain.SourceNASATechPort), Scanner: "techport", BaseURL: "https://techport.nasa.gov", PerPage: 25},
		},
	}
}
