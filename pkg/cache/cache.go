// Package cache defines the generation cache contract and the key and
// freshness rules shared by every backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// ErrNotFound is returned by Lookup when no row matches.
var ErrNotFound = errors.New("cache entry not found")

// Store is a row-oriented cache keyed by (hostname, no_limit). Rows are only
// ever inserted; Lookup returns the most recently cached row for the key.
type Store interface {
	Lookup(ctx context.Context, host string, noLimit bool) (*models.CacheEntry, error)
	Insert(ctx context.Context, entry models.CacheEntry) error
	// Stats counts rows; rows older than maxAge are reported as stale.
	Stats(ctx context.Context, maxAge time.Duration) (models.CacheStats, error)
	// Clear removes rows older than olderThan, or every row when olderThan is zero.
	Clear(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// Key identifies one cache line.
type Key struct {
	Host string
	Tier models.Tier
}

func (k Key) String() string {
	return k.Host + "/" + k.Tier.String()
}

// Stem returns the hostname of rawURL. URLs without an http(s) scheme are
// read as http.
func Stem(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no hostname", rawURL)
	}
	return host, nil
}

// KeyFor derives the cache key of a batch. Only the first URL counts.
func KeyFor(urls []string, tier models.Tier) (Key, error) {
	if len(urls) == 0 {
		return Key{}, errors.New("no urls")
	}
	host, err := Stem(urls[0])
	if err != nil {
		return Key{}, err
	}
	return Key{Host: host, Tier: tier}, nil
}

// Fresh reports whether entry may still be served at now.
func Fresh(entry *models.CacheEntry, now time.Time, maxAge time.Duration) bool {
	if entry == nil {
		return false
	}
	return now.Sub(entry.CachedAt) < maxAge
}
