package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pario-ai/llmstxt/pkg/cache"
	redisstore "github.com/pario-ai/llmstxt/pkg/cache/redis"
	sqlitestore "github.com/pario-ai/llmstxt/pkg/cache/sqlite"
	"github.com/pario-ai/llmstxt/pkg/config"
	"github.com/pario-ai/llmstxt/pkg/gateway"
	"github.com/pario-ai/llmstxt/pkg/quota"
	"github.com/pario-ai/llmstxt/pkg/scrape"
	"github.com/pario-ai/llmstxt/pkg/scrape/direct"
	"github.com/pario-ai/llmstxt/pkg/scrape/firecrawl"
	"github.com/pario-ai/llmstxt/pkg/summarize/openai"
	"github.com/pario-ai/llmstxt/pkg/tracker"
)

func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// setup loads configuration and installs the process logger.
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		st, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			History:  cfg.Cache.Redis.History,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := sqlitestore.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func newScraper(cfg *config.Config, logger *slog.Logger) scrape.Scraper {
	if cfg.Scrape.Provider == "direct" {
		return direct.New(cfg.Scrape.Direct.UserAgent, cfg.Scrape.Direct.Concurrency, logger,
			direct.WithAllowPrivate(cfg.Scrape.Direct.AllowPrivate))
	}
	return firecrawl.New(cfg.Scrape.Firecrawl.URL,
		firecrawl.WithPollInterval(cfg.Scrape.Firecrawl.PollInterval),
		firecrawl.WithLogger(logger),
	)
}

// service is a wired gateway plus the resources it holds open.
type service struct {
	*gateway.Service
	store   cache.Store
	tracker tracker.Tracker
}

func (s *service) Close() error {
	err := s.store.Close()
	if s.tracker != nil {
		if terr := s.tracker.Close(); err == nil {
			err = terr
		}
	}
	return err
}

func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	var tr tracker.Tracker
	options := []gateway.Option{gateway.WithLogger(logger)}
	if cfg.Tracker.Enabled {
		st, err := tracker.New(cfg.DBPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init tracker: %w", err)
		}
		tr = st
		options = append(options, gateway.WithTracker(st))
	}

	// The direct scraper takes no credential: no shared key is needed and
	// caller keys grant nothing.
	mode := quota.Credentialed
	if cfg.Scrape.Provider == "direct" {
		mode = quota.Keyless
	}
	q := quota.New(cfg.Scrape.Firecrawl.APIKey, cfg.Quota.DefaultLimit, cfg.Quota.BYOKLimit, mode)

	summarizer := openai.New(openai.Options{
		APIKey:            cfg.Summarize.OpenAI.APIKey,
		BaseURL:           cfg.Summarize.OpenAI.BaseURL,
		Model:             cfg.Summarize.OpenAI.Model,
		RequestsPerSecond: cfg.Summarize.OpenAI.RequestsPerSecond,
		MaxContentChars:   cfg.Summarize.MaxContentChars,
	})

	svc := gateway.New(q, store, newScraper(cfg, logger), summarizer, gateway.Options{
		MaxAge:           cfg.Cache.MaxAge,
		Concurrency:      cfg.Summarize.Concurrency,
		CacheTimeout:     cfg.Cache.Timeout,
		ScrapeTimeout:    cfg.Scrape.Timeout,
		SummarizeTimeout: cfg.Summarize.Timeout,
	}, options...)

	if cfg.Summarize.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, generation will fail on a cache miss")
	}
	return &service{Service: svc, store: store, tracker: tr}, nil
}
