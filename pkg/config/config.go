package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all llmstxt configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DBPath    string          `yaml:"db_path"`
	Log       LogConfig       `yaml:"log"`
	Quota     QuotaConfig     `yaml:"quota"`
	Cache     CacheConfig     `yaml:"cache"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Summarize SummarizeConfig `yaml:"summarize"`
	Tracker   TrackerConfig   `yaml:"tracker"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// QuotaConfig sets the URL ceilings for each tier.
type QuotaConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	BYOKLimit    int `yaml:"byok_limit"`
}

// CacheConfig controls the generation cache.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // "sqlite" or "redis"
	MaxAge  time.Duration `yaml:"max_age"`
	Timeout time.Duration `yaml:"timeout"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	History  int64  `yaml:"history"`
}

// ScrapeConfig selects and configures the scraping provider.
type ScrapeConfig struct {
	Provider  string          `yaml:"provider"` // "firecrawl" or "direct"
	Timeout   time.Duration   `yaml:"timeout"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl"`
	Direct    DirectConfig    `yaml:"direct"`
}

// FirecrawlConfig holds the shared Firecrawl credential and endpoint.
type FirecrawlConfig struct {
	APIKey       string        `yaml:"api_key"`
	URL          string        `yaml:"url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DirectConfig configures the built-in fetcher.
type DirectConfig struct {
	Concurrency int    `yaml:"concurrency"`
	UserAgent   string `yaml:"user_agent"`
	// AllowPrivate permits fetching loopback, private and link-local hosts.
	AllowPrivate bool `yaml:"allow_private"`
}

// SummarizeConfig controls per-page summarization.
type SummarizeConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxContentChars int           `yaml:"max_content_chars"`
	OpenAI          OpenAIConfig  `yaml:"openai"`
}

// OpenAIConfig defines the completion provider.
type OpenAIConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// TrackerConfig controls the generation ledger.
type TrackerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "llmstxt.db",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Quota: QuotaConfig{
			DefaultLimit: 10,
			BYOKLimit:    1000,
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			MaxAge:  72 * time.Hour,
			Timeout: 5 * time.Second,
			Redis: RedisConfig{
				Addr:    "localhost:6379",
				Prefix:  "llmstxt",
				History: 10,
			},
		},
		Scrape: ScrapeConfig{
			Provider: "firecrawl",
			Timeout:  10 * time.Minute,
			Firecrawl: FirecrawlConfig{
				URL:          "https://api.firecrawl.dev",
				PollInterval: 2 * time.Second,
			},
			Direct: DirectConfig{
				Concurrency: 4,
				UserAgent:   "llmstxt/1.0",
			},
		},
		Summarize: SummarizeConfig{
			Concurrency: 1,
			Timeout:     time.Minute,
			OpenAI: OpenAIConfig{
				BaseURL: "https://api.openai.com",
				Model:   "gpt-4o-mini",
			},
		},
		Tracker: TrackerConfig{
			Enabled: true,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist. The environment overlay is applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
	} else if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields with well-known environment variables when they are set.
func (c *Config) ApplyEnv() {
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "LLMSTXT_LISTEN")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Scrape.Firecrawl.APIKey, "FIRECRAWL_API_KEY")
	set(&c.Scrape.Firecrawl.URL, "FIRECRAWL_API_URL")
	set(&c.Summarize.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.Summarize.OpenAI.BaseURL, "OPENAI_BASE_URL")
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.Backend = "redis"
		c.Cache.Redis.Addr = v
	}
}

// Validate checks structural settings. Missing credentials are not an error
// here; the gateway reports them per request.
func (c *Config) Validate() error {
	if c.Quota.DefaultLimit <= 0 || c.Quota.BYOKLimit <= 0 {
		return fmt.Errorf("quota limits must be positive")
	}
	switch c.Cache.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Scrape.Provider {
	case "firecrawl", "direct":
	default:
		return fmt.Errorf("unknown scrape provider %q", c.Scrape.Provider)
	}
	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache max_age must be positive")
	}
	if c.Summarize.Concurrency < 1 {
		return fmt.Errorf("summarize concurrency must be at least 1")
	}
	return nil
}
