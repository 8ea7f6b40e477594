// Package redis stores generation cache rows in Redis lists, one list per
// (hostname, tier) key with the newest row at the head.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pario-ai/llmstxt/pkg/cache"
	"github.com/pario-ai/llmstxt/pkg/models"
)

// Options configures a Store.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key written by the store.
	Prefix string
	// History caps how many rows are kept per key. Zero keeps everything.
	History int64
}

// Store is the generation cache backed by Redis.
type Store struct {
	client  goredis.UniversalClient
	prefix  string
	history int64
	now     func() time.Time
}

var _ cache.Store = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	ropts := &goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	// Hosted providers hand out connection URLs rather than host:port.
	if strings.HasPrefix(opts.Addr, "redis://") || strings.HasPrefix(opts.Addr, "rediss://") {
		parsed, err := goredis.ParseURL(opts.Addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ropts = parsed
	}
	client := goredis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", ropts.Addr, err)
	}
	return NewWithClient(client, opts.Prefix, opts.History), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, prefix string, history int64) *Store {
	if prefix == "" {
		prefix = "llmstxt"
	}
	return &Store{client: client, prefix: prefix, history: history, now: time.Now}
}

func (s *Store) key(host string, noLimit bool) string {
	tier := "limited"
	if noLimit {
		tier = "nolimit"
	}
	return fmt.Sprintf("%s:cache:%s:%s", s.prefix, host, tier)
}

func (s *Store) pattern() string {
	return s.prefix + ":cache:*"
}

// Lookup returns the head of the list for host and tier.
func (s *Store) Lookup(ctx context.Context, host string, noLimit bool) (*models.CacheEntry, error) {
	raw, err := s.client.LIndex(ctx, s.key(host, noLimit), 0).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	var e models.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}

// Insert pushes a row to the head of its list and trims the history.
func (s *Store) Insert(ctx context.Context, entry models.CacheEntry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = s.now()
	}
	entry.CachedAt = entry.CachedAt.UTC()
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	key := s.key(entry.URL, entry.NoLimit)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, key, raw)
		if s.history > 0 {
			pipe.LTrim(ctx, key, 0, s.history-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache insert: %w", err)
	}
	return nil
}

// Stats walks every cache list under the prefix.
func (s *Store) Stats(ctx context.Context, maxAge time.Duration) (models.CacheStats, error) {
	var st models.CacheStats
	hosts := make(map[string]struct{})
	now := s.now()

	err := s.scan(ctx, func(key string) error {
		entries, err := s.entries(ctx, key)
		if err != nil {
			return err
		}
		for _, e := range entries {
			st.Entries++
			hosts[e.URL] = struct{}{}
			if !cache.Fresh(&e, now, maxAge) {
				st.Stale++
			}
		}
		return nil
	})
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	st.Hosts = int64(len(hosts))
	return st, nil
}

// Clear removes rows older than olderThan, or all rows when olderThan is zero.
func (s *Store) Clear(ctx context.Context, olderThan time.Duration) (int64, error) {
	var removed int64
	now := s.now()

	err := s.scan(ctx, func(key string) error {
		if olderThan <= 0 {
			n, err := s.client.LLen(ctx, key).Result()
			if err != nil {
				return err
			}
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return err
			}
			removed += n
			return nil
		}

		// Lists are newest-first, so expired rows form the tail.
		entries, err := s.entries(ctx, key)
		if err != nil {
			return err
		}
		keep := 0
		for keep < len(entries) && cache.Fresh(&entries[keep], now, olderThan) {
			keep++
		}
		if keep == len(entries) {
			return nil
		}
		if keep == 0 {
			err = s.client.Del(ctx, key).Err()
		} else {
			err = s.client.LTrim(ctx, key, 0, int64(keep-1)).Err()
		}
		if err != nil {
			return err
		}
		removed += int64(len(entries) - keep)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cache clear: %w", err)
	}
	return removed, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) scan(ctx context.Context, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, s.pattern(), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, s.prefix+":cache:") {
			continue
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *Store) entries(ctx context.Context, key string) ([]models.CacheEntry, error) {
	raws, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.CacheEntry, 0, len(raws))
	for _, raw := range raws {
		var e models.CacheEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, e)
	}
	return out, nil
}
