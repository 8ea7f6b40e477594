// Package scrape defines the batch scraping contract.
package scrape

import (
	"context"
	"errors"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// ErrBatchFailed is wrapped by scrapers when the provider reports that the
// batch as a whole failed.
var ErrBatchFailed = errors.New("batch scrape failed")

// Batch is one scrape job.
type Batch struct {
	URLs []string
	// APIKey is the credential resolved for the request. Scrapers that need
	// no credential ignore it.
	APIKey string
}

// Scraper fetches many pages in one call and returns them as markdown, in
// the order the provider reports them.
type Scraper interface {
	BatchScrape(ctx context.Context, batch Batch) ([]models.PageResult, error)
}
