// Package firecrawl implements scrape.Scraper on top of the Firecrawl v1
// batch scrape API.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/scrape"
)

// DefaultURL is the hosted Firecrawl API.
const DefaultURL = "https://api.firecrawl.dev"

// Client talks to the Firecrawl API. The API key is supplied per batch.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ scrape.Scraper = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval sets how often a running batch is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 2 * time.Second,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BatchScrape starts a markdown-only, main-content-only batch job and waits
// for it to finish.
func (c *Client) BatchScrape(ctx context.Context, batch scrape.Batch) ([]models.PageResult, error) {
	if batch.APIKey == "" {
		return nil, fmt.Errorf("firecrawl: missing api key")
	}

	start, err := c.start(ctx, batch)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("firecrawl batch started", "id", start.ID, "urls", len(batch.URLs), "invalid", len(start.InvalidURLs))

	status, err := c.wait(ctx, batch.APIKey, start.ID)
	if err != nil {
		return nil, err
	}

	data := status.Data
	for next := status.Next; next != ""; {
		var page batchStatus
		if err := c.get(ctx, batch.APIKey, next, &page); err != nil {
			return nil, fmt.Errorf("firecrawl: fetch next page: %w", err)
		}
		data = append(data, page.Data...)
		next = page.Next
	}

	c.logger.Debug("firecrawl batch completed", "id", start.ID, "pages", len(data), "credits", status.CreditsUsed)

	pages := make([]models.PageResult, 0, len(data))
	for _, d := range data {
		pages = append(pages, d.toPage())
	}
	return pages, nil
}

func (c *Client) start(ctx context.Context, batch scrape.Batch) (*startResponse, error) {
	body, err := json.Marshal(startRequest{
		URLs:            batch.URLs,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("firecrawl: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/batch/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("firecrawl: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+batch.APIKey)

	var out startResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.ID == "" {
		return nil, fmt.Errorf("%w: %s", scrape.ErrBatchFailed, out.reason())
	}
	return &out, nil
}

func (c *Client) wait(ctx context.Context, apiKey, id string) (*batchStatus, error) {
	statusURL := c.baseURL + "/v1/batch/scrape/" + id
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		var st batchStatus
		if err := c.get(ctx, apiKey, statusURL, &st); err != nil {
			return nil, fmt.Errorf("firecrawl: poll batch %s: %w", id, err)
		}

		switch st.Status {
		case "completed":
			return &st, nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("%w: %s", scrape.ErrBatchFailed, st.reason())
		}
		c.logger.Debug("firecrawl batch in progress", "id", id, "completed", st.Completed, "total", st.Total)
		timer.Reset(c.pollInterval)
	}
}

func (c *Client) get(ctx context.Context, apiKey, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return c.do(req, out)
}

// do executes req and decodes a JSON body. Non-2xx responses become
// ErrBatchFailed carrying the provider's error message.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("firecrawl: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("firecrawl: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return fmt.Errorf("%w: status %d: %s", scrape.ErrBatchFailed, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("firecrawl: decode response: %w", err)
	}
	return nil
}
