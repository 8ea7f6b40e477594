// Package direct is a credential-free scraper that fetches pages itself,
// isolates the main content with go-readability and renders it as markdown.
package direct

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/scrape"
)

const maxBodyBytes = 10 << 20

// Scraper fetches pages over HTTP.
type Scraper struct {
	httpClient  *http.Client
	userAgent   string
	concurrency int
	logger      *slog.Logger
}

var _ scrape.Scraper = (*Scraper)(nil)

// Option customises a Scraper.
type Option func(*options)

type options struct {
	allowPrivate bool
}

// WithAllowPrivate lets the scraper reach loopback, private and link-local
// addresses. Off by default.
func WithAllowPrivate(allow bool) Option {
	return func(o *options) { o.allowPrivate = allow }
}

// New creates a Scraper. concurrency bounds parallel fetches.
func New(userAgent string, concurrency int, logger *slog.Logger, opts ...Option) *Scraper {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Scraper{
		httpClient:  newHTTPClient(o.allowPrivate),
		userAgent:   userAgent,
		concurrency: concurrency,
		logger:      logger,
	}
}

// BatchScrape fetches every URL. Pages that fail are logged and dropped;
// the batch fails only when no page could be scraped.
func (s *Scraper) BatchScrape(ctx context.Context, batch scrape.Batch) ([]models.PageResult, error) {
	results := make([]*models.PageResult, len(batch.URLs))
	errs := make([]error, len(batch.URLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, raw := range batch.URLs {
		i, raw := i, raw
		g.Go(func() error {
			page, err := s.scrapeOne(gctx, raw)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = page
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages := make([]models.PageResult, 0, len(results))
	var firstErr error
	for i, p := range results {
		if p == nil {
			s.logger.Warn("skipping page", "url", batch.URLs[i], "error", errs[i])
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		pages = append(pages, *p)
	}
	if len(pages) == 0 && firstErr != nil {
		return nil, fmt.Errorf("%w: %w", scrape.ErrBatchFailed, firstErr)
	}
	return pages, nil
}

func (s *Scraper) scrapeOne(ctx context.Context, raw string) (*models.PageResult, error) {
	target := raw
	lower := strings.ToLower(target)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		target = "http://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}

	return parsePage(resp.Request.URL, string(body))
}

// parsePage extracts the main article from html and renders it as markdown.
func parsePage(pageURL *url.URL, html string) (*models.PageResult, error) {
	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(html), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability %s: %w", pageURL, err)
	}

	markdown, err := renderMarkdown(article.Content)
	if err != nil {
		return nil, err
	}

	description := article.Excerpt
	if description == "" {
		description = metaDescription(html)
	}

	return &models.PageResult{
		URL:         pageURL.String(),
		Markdown:    markdown,
		Title:       normalizeText(article.Title),
		Description: normalizeText(description),
	}, nil
}
