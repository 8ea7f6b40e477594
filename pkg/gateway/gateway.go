// Package gateway runs one generation request end to end: quota resolution,
// cache lookup and, on a miss, scrape, per-page summarization, document
// assembly and cache write.
//
// Fatal failures are *Error values carrying a Kind. When the caller's
// context ends first, Generate returns the plain context error instead.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/llmstxt/pkg/cache"
	"github.com/pario-ai/llmstxt/pkg/llmstxt"
	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/quota"
	"github.com/pario-ai/llmstxt/pkg/scrape"
	"github.com/pario-ai/llmstxt/pkg/summarize"
	"github.com/pario-ai/llmstxt/pkg/tracker"
)

// Options tunes the gateway. Zero timeouts disable the corresponding deadline.
type Options struct {
	// MaxAge is how long a cached result may be served.
	MaxAge time.Duration
	// Concurrency bounds in-flight summarization calls. 1 summarizes pages
	// strictly one after another.
	Concurrency      int
	CacheTimeout     time.Duration
	ScrapeTimeout    time.Duration
	SummarizeTimeout time.Duration
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		MaxAge:      72 * time.Hour,
		Concurrency: 1,
	}
}

// Service is the aggregation gateway.
type Service struct {
	quota      *quota.Resolver
	store      cache.Store
	scraper    scrape.Scraper
	summarizer summarize.Summarizer
	tracker    tracker.Tracker
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithTracker records every request in t.
func WithTracker(t tracker.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires a Service.
func New(q *quota.Resolver, store cache.Store, scraper scrape.Scraper, summarizer summarize.Summarizer, opts Options, options ...Option) *Service {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultOptions().MaxAge
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	s := &Service{
		quota:      q,
		store:      store,
		scraper:    scraper,
		summarizer: summarizer,
		logger:     slog.Default(),
		opts:       opts,
		now:        time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Generate produces both documents for req, serving a fresh cached copy when
// one exists for the same hostname and tier.
func (s *Service) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error) {
	start := s.now()
	logger := loggerFrom(ctx, s.logger)

	if len(req.URLs) == 0 {
		return nil, fail(KindInput, fmt.Errorf("%w: urls are required", ErrInput))
	}

	q, err := s.quota.Resolve(req.BYOKKey)
	if err != nil {
		return nil, fail(KindConfiguration, err)
	}
	urls := q.Apply(req.URLs)
	if len(urls) < len(req.URLs) {
		logger.Info("url list truncated", "tier", q.Tier.String(), "limit", q.Limit, "requested", len(req.URLs))
	}

	key, err := cache.KeyFor(urls, q.Tier)
	if err != nil {
		return nil, fail(KindInput, fmt.Errorf("%w: %v", ErrInput, err))
	}
	logger = logger.With("host", key.Host, "tier", key.Tier.String())

	rec := models.GenerationRecord{Host: key.Host, NoLimit: q.Tier.NoLimit(), URLCount: len(urls)}

	if entry := s.lookup(ctx, logger, key); entry != nil {
		logger.Info("cache hit", "cached_at", entry.CachedAt)
		rec.CacheHit = true
		s.record(ctx, logger, rec, start)
		return &models.GenerateResult{
			Documents: models.Documents{LLMsTxt: entry.LLMsTxt, LLMsFullTxt: entry.LLMsFullTxt},
			Host:      key.Host,
			Tier:      key.Tier,
			CacheHit:  true,
		}, nil
	}

	pages, err := s.scrape(ctx, urls, q.APIKey)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		logger.Warn("scrape returned no pages", "urls", len(urls))
	}

	summaries, usage, err := s.summarizeAll(ctx, pages)
	if err != nil {
		return nil, err
	}

	b := llmstxt.NewBuilder(key.Host)
	for i, p := range pages {
		b.Add(p, summaries[i])
	}
	docs := b.Documents(key.Tier)

	if err := s.write(ctx, key, docs); err != nil {
		return nil, err
	}

	rec.PageCount = b.Pages()
	rec.PromptTokens = usage.PromptTokens
	rec.CompletionTokens = usage.CompletionTokens
	rec.TotalTokens = usage.TotalTokens
	s.record(ctx, logger, rec, start)
	logger.Info("generated", "pages", b.Pages(), "tokens", usage.TotalTokens)

	return &models.GenerateResult{Documents: docs, Host: key.Host, Tier: key.Tier}, nil
}

// lookup returns a servable cache entry or nil. Failures count as a miss.
func (s *Service) lookup(ctx context.Context, logger *slog.Logger, key cache.Key) *models.CacheEntry {
	ctx, cancel := withTimeout(ctx, s.opts.CacheTimeout)
	defer cancel()

	entry, err := s.store.Lookup(ctx, key.Host, key.Tier.NoLimit())
	if errors.Is(err, cache.ErrNotFound) {
		logger.Debug("cache miss")
		return nil
	}
	if err != nil {
		logger.Warn("cache lookup failed, regenerating", "error", err)
		return nil
	}
	if !cache.Fresh(entry, s.now(), s.opts.MaxAge) {
		logger.Debug("cache entry stale", "cached_at", entry.CachedAt)
		return nil
	}
	return entry
}

func (s *Service) scrape(ctx context.Context, urls []string, apiKey string) ([]models.PageResult, error) {
	sctx, cancel := withTimeout(ctx, s.opts.ScrapeTimeout)
	defer cancel()

	pages, err := s.scraper.BatchScrape(sctx, scrape.Batch{URLs: urls, APIKey: apiKey})
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, fmt.Errorf("scrape abandoned: %w", cerr)
		}
		return nil, fail(KindScrape, fmt.Errorf("failed to scrape: %w", err))
	}
	return pages, nil
}

// summarizeAll summarizes every page with at most Concurrency calls in
// flight. Results keep the index of their page, so assembly order always
// matches scrape order. Any failure aborts the whole batch.
func (s *Service) summarizeAll(ctx context.Context, pages []models.PageResult) ([]models.Summary, models.Usage, error) {
	summaries := make([]models.Summary, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			cctx, cancel := withTimeout(gctx, s.opts.SummarizeTimeout)
			defer cancel()

			sum, err := s.summarizer.Summarize(cctx, page)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", page.URL, err)
			}
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// The caller went away; no provider failed.
		if cerr := ctx.Err(); cerr != nil {
			return nil, models.Usage{}, fmt.Errorf("summarization abandoned: %w", cerr)
		}
		return nil, models.Usage{}, fail(KindSummarization, err)
	}

	var usage models.Usage
	for _, sum := range summaries {
		usage.Add(sum.Usage)
	}
	return summaries, usage, nil
}

// write stores docs even if the caller has gone away, since the work is done.
func (s *Service) write(ctx context.Context, key cache.Key, docs models.Documents) error {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.opts.CacheTimeout)
	defer cancel()

	err := s.store.Insert(ctx, models.CacheEntry{
		URL:         key.Host,
		LLMsTxt:     docs.LLMsTxt,
		LLMsFullTxt: docs.LLMsFullTxt,
		CachedAt:    s.now(),
		NoLimit:     key.Tier.NoLimit(),
	})
	if err != nil {
		return fail(KindCacheWrite, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, rec models.GenerationRecord, start time.Time) {
	if s.tracker == nil {
		return
	}
	rec.CreatedAt = s.now().UTC()
	rec.DurationMs = rec.CreatedAt.Sub(start).Milliseconds()
	if err := s.tracker.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("record generation failed", "error", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
