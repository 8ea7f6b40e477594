package gateway

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/llmstxt/pkg/cache"
	"github.com/pario-ai/llmstxt/pkg/cache/sqlite"
	"github.com/pario-ai/llmstxt/pkg/llmstxt"
	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/quota"
	"github.com/pario-ai/llmstxt/pkg/scrape"
	"github.com/pario-ai/llmstxt/pkg/summarize"
	"github.com/pario-ai/llmstxt/pkg/tracker"
)

type memStore struct {
	mu        sync.Mutex
	rows      map[string][]models.CacheEntry
	lookups   int
	inserts   int
	lookupErr error
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string][]models.CacheEntry)}
}

func memKey(host string, noLimit bool) string {
	return fmt.Sprintf("%s|%v", host, noLimit)
}

func (m *memStore) Lookup(_ context.Context, host string, noLimit bool) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	rows := m.rows[memKey(host, noLimit)]
	if len(rows) == 0 {
		return nil, cache.ErrNotFound
	}
	e := rows[len(rows)-1]
	return &e, nil
}

func (m *memStore) Insert(_ context.Context, e models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	k := memKey(e.URL, e.NoLimit)
	m.rows[k] = append(m.rows[k], e)
	return nil
}

func (m *memStore) Stats(context.Context, time.Duration) (models.CacheStats, error) {
	return models.CacheStats{}, nil
}

func (m *memStore) Clear(context.Context, time.Duration) (int64, error) { return 0, nil }

func (m *memStore) Close() error { return nil }

type fakeScraper struct {
	calls   atomic.Int32
	gotURLs []string
	gotKey  string
	err     error
}

func (f *fakeScraper) BatchScrape(_ context.Context, b scrape.Batch) ([]models.PageResult, error) {
	f.calls.Add(1)
	f.gotURLs = b.URLs
	f.gotKey = b.APIKey
	if f.err != nil {
		return nil, f.err
	}
	pages := make([]models.PageResult, len(b.URLs))
	for i, u := range b.URLs {
		pages[i] = models.PageResult{URL: "https://" + u, Markdown: fmt.Sprintf("# page %d\n", i)}
	}
	return pages, nil
}

type fakeSummarizer struct {
	calls  atomic.Int32
	failOn string
	// delay makes earlier pages finish later, to shake out ordering bugs.
	delay func(page models.PageResult) time.Duration
}

func (f *fakeSummarizer) Summarize(ctx context.Context, page models.PageResult) (models.Summary, error) {
	f.calls.Add(1)
	if f.delay != nil {
		select {
		case <-time.After(f.delay(page)):
		case <-ctx.Done():
			return models.Summary{}, ctx.Err()
		}
	}
	if f.failOn != "" && page.URL == f.failOn {
		return models.Summary{}, fmt.Errorf("%w: missing title", summarize.ErrInvalidSummary)
	}
	slug := page.URL[strings.LastIndex(page.URL, "/")+1:]
	return models.Summary{
		Title:       "Title " + slug,
		Description: "Description of " + slug,
		Usage:       &models.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}, nil
}

type fixture struct {
	store      *memStore
	scraper    *fakeScraper
	summarizer *fakeSummarizer
	now        time.Time
	svc        *Service
}

func newFixture(t *testing.T, sharedKey string, opts Options, extra ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:      newMemStore(),
		scraper:    &fakeScraper{},
		summarizer: &fakeSummarizer{},
		now:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	options := append([]Option{WithClock(func() time.Time { return f.now })}, extra...)
	f.svc = New(quota.New(sharedKey, 10, 1000, quota.Credentialed), f.store, f.scraper, f.summarizer, opts, options...)
	return f
}

func TestGenerateRestrictedScenario(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())

	res, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com/a", "example.com/b"}})
	require.NoError(t, err)

	assert.False(t, res.CacheHit)
	assert.Equal(t, "example.com", res.Host)
	assert.Equal(t, models.TierRestricted, res.Tier)
	assert.Equal(t, "fc-shared", f.scraper.gotKey)
	assert.Equal(t, []string{"example.com/a", "example.com/b"}, f.scraper.gotURLs)
	assert.Equal(t, int32(2), f.summarizer.calls.Load())

	wantIndex := "# example.com llms.txt\n\n" +
		"- [Title a](https://example.com/a): Description of a\n" +
		"- [Title b](https://example.com/b): Description of b\n" +
		llmstxt.IndexDisclaimer
	assert.Equal(t, wantIndex, res.LLMsTxt)
	assert.Equal(t, "# example.com llms-full.txt\n\n# page 0\n# page 1\n"+llmstxt.FullDisclaimer, res.LLMsFullTxt)

	rows := f.store.rows[memKey("example.com", false)]
	require.Len(t, rows, 1)
	assert.Equal(t, res.LLMsTxt, rows[0].LLMsTxt)
	assert.Equal(t, res.LLMsFullTxt, rows[0].LLMsFullTxt)
	assert.Equal(t, f.now, rows[0].CachedAt)
	assert.False(t, rows[0].NoLimit)
}

func TestGenerateRepeatServesCache(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	ctx := context.Background()

	first, err := f.svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a", "example.com/b"}})
	require.NoError(t, err)

	f.now = f.now.Add(71 * time.Hour)
	second, err := f.svc.Generate(ctx, models.GenerateRequest{URLs: []string{"https://example.com/other?x=1", "example.com/z"}})
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Documents, second.Documents)
	assert.Equal(t, int32(1), f.scraper.calls.Load())
	assert.Equal(t, int32(2), f.summarizer.calls.Load())
	assert.Equal(t, 1, f.store.inserts)
}

func TestGenerateStaleEntryRegenerates(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	ctx := context.Background()
	req := models.GenerateRequest{URLs: []string{"example.com/a"}}

	_, err := f.svc.Generate(ctx, req)
	require.NoError(t, err)

	f.now = f.now.Add(72 * time.Hour)
	res, err := f.svc.Generate(ctx, req)
	require.NoError(t, err)

	assert.False(t, res.CacheHit)
	assert.Equal(t, int32(2), f.scraper.calls.Load())
	assert.Len(t, f.store.rows[memKey("example.com", false)], 2, "regeneration appends a new row")
}

func TestGenerateOtherTierIsNotServed(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.NoError(t, err)

	res, err := f.svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a"}, BYOKKey: "fc-caller"})
	require.NoError(t, err)

	assert.False(t, res.CacheHit)
	assert.Equal(t, models.TierUnrestricted, res.Tier)
	assert.Equal(t, "fc-caller", f.scraper.gotKey)
	assert.NotContains(t, res.LLMsTxt, "*Note:")
	assert.NotContains(t, res.LLMsFullTxt, "*Note:")
	assert.Len(t, f.store.rows[memKey("example.com", true)], 1)
}

func TestGenerateTruncatesToQuota(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())

	urls := make([]string, 15)
	for i := range urls {
		urls[i] = fmt.Sprintf("example.com/%02d", i)
	}
	_, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: urls})
	require.NoError(t, err)

	assert.Equal(t, urls[:10], f.scraper.gotURLs)
	assert.Equal(t, int32(10), f.summarizer.calls.Load())
}

func TestGenerateBYOKLimit(t *testing.T) {
	f := newFixture(t, "", DefaultOptions())

	urls := make([]string, 1200)
	for i := range urls {
		urls[i] = fmt.Sprintf("example.com/%d", i)
	}
	_, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: urls, BYOKKey: "fc-caller"})
	require.NoError(t, err)
	assert.Len(t, f.scraper.gotURLs, 1000)
}

func TestGenerateConcurrentSummariesKeepOrder(t *testing.T) {
	opts := DefaultOptions()
	opts.Concurrency = 4
	f := newFixture(t, "fc-shared", opts)
	// Later pages finish first.
	f.summarizer.delay = func(p models.PageResult) time.Duration {
		var n int
		fmt.Sscanf(p.Markdown, "# page %d", &n)
		return time.Duration(8-n) * 3 * time.Millisecond
	}

	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("example.com/p%d", i)
	}
	res, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: urls, BYOKKey: "k"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(res.LLMsTxt), "\n")[2:]
	require.Len(t, lines, 8)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("- [Title p%d](https://example.com/p%d): Description of p%d", i, i, i), line)
	}
	for i := 1; i < 8; i++ {
		assert.Less(t, strings.Index(res.LLMsFullTxt, fmt.Sprintf("# page %d", i-1)), strings.Index(res.LLMsFullTxt, fmt.Sprintf("# page %d", i)))
	}
}

func TestGenerateInputErrors(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())

	for _, req := range []models.GenerateRequest{
		{},
		{URLs: []string{}},
		{URLs: []string{"http://"}},
	} {
		_, err := f.svc.Generate(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, KindInput, KindOf(err))
		assert.ErrorIs(t, err, ErrInput)
	}
	assert.Zero(t, f.store.lookups)
	assert.Zero(t, f.scraper.calls.Load())
}

func TestGenerateMissingSharedCredential(t *testing.T) {
	f := newFixture(t, "", DefaultOptions())

	_, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com"}})
	require.Error(t, err)
	assert.Equal(t, KindConfiguration, KindOf(err))
	assert.ErrorIs(t, err, quota.ErrMissingCredential)
	assert.Zero(t, f.store.lookups, "no external call before the configuration check")
	assert.Zero(t, f.scraper.calls.Load())
}

func TestGenerateCacheReadFailureFallsThrough(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	f.store.lookupErr = errors.New("connection refused")

	res, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.Equal(t, int32(1), f.scraper.calls.Load())
	assert.Equal(t, 1, f.store.inserts)
}

func TestGenerateScrapeFailure(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	f.scraper.err = fmt.Errorf("%w: insufficient credits", scrape.ErrBatchFailed)

	res, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindScrape, KindOf(err))
	assert.Contains(t, err.Error(), "insufficient credits")
	assert.Zero(t, f.store.inserts)
	assert.Zero(t, f.summarizer.calls.Load())
}

func TestGenerateSummarizationFailure(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	f.summarizer.failOn = "https://example.com/b"

	res, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com/a", "example.com/b", "example.com/c"}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindSummarization, KindOf(err))
	assert.ErrorIs(t, err, summarize.ErrInvalidSummary)
	assert.Zero(t, f.store.inserts)
}

func TestGenerateCacheWriteFailure(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	f.store.insertErr = errors.New("disk full")

	res, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.Error(t, err)
	assert.Nil(t, res, "generated content is not returned when the cache write fails")
	assert.Equal(t, KindCacheWrite, KindOf(err))
	assert.Equal(t, int32(1), f.summarizer.calls.Load())
}

func TestGenerateSummarizeTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.SummarizeTimeout = 5 * time.Millisecond
	f := newFixture(t, "fc-shared", opts)
	f.summarizer.delay = func(models.PageResult) time.Duration { return time.Second }

	_, err := f.svc.Generate(context.Background(), models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.Error(t, err)
	assert.Equal(t, KindSummarization, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateRecordsToTracker(t *testing.T) {
	tr, err := tracker.New(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	f := newFixture(t, "fc-shared", DefaultOptions(), WithTracker(tr))
	ctx := context.Background()
	req := models.GenerateRequest{URLs: []string{"example.com/a", "example.com/b"}}

	_, err = f.svc.Generate(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, req)
	require.NoError(t, err)

	sums, err := tr.Summary(ctx, "example.com")
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].RequestCount)
	assert.Equal(t, 1, sums[0].CacheHits)
	assert.Equal(t, 2, sums[0].TotalPages)
	assert.Equal(t, 24, sums[0].TotalTokens)
}

func TestGenerateWithSQLiteStore(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	scraper := &fakeScraper{}
	summarizer := &fakeSummarizer{}
	svc := New(quota.New("fc-shared", 10, 1000, quota.Credentialed), store, scraper, summarizer, DefaultOptions())
	ctx := context.Background()

	first, err := svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.NoError(t, err)
	second, err := svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Documents, second.Documents)
	assert.Equal(t, int32(1), scraper.calls.Load())
}

func TestGenerateKeylessIgnoresCallerKey(t *testing.T) {
	store := newMemStore()
	scraper := &fakeScraper{}
	svc := New(quota.New("", 10, 1000, quota.Keyless), store, scraper, &fakeSummarizer{}, DefaultOptions())

	urls := make([]string, 15)
	for i := range urls {
		urls[i] = fmt.Sprintf("example.com/%02d", i)
	}
	res, err := svc.Generate(context.Background(), models.GenerateRequest{URLs: urls, BYOKKey: "not-a-real-key"})
	require.NoError(t, err)

	assert.Equal(t, models.TierRestricted, res.Tier)
	assert.Equal(t, urls[:10], scraper.gotURLs)
	assert.Empty(t, scraper.gotKey)
	assert.True(t, strings.HasSuffix(res.LLMsTxt, llmstxt.IndexDisclaimer))
	assert.Len(t, store.rows[memKey("example.com", false)], 1)
	assert.Empty(t, store.rows[memKey("example.com", true)])
}

func TestGenerateCallerGoneDuringScrape(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	f.scraper.err = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a"}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.summarizer.calls.Load())
}

func TestGenerateCallerGoneDuringSummarization(t *testing.T) {
	f := newFixture(t, "fc-shared", DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.summarizer.delay = func(models.PageResult) time.Duration {
		cancel()
		return time.Second
	}

	res, err := f.svc.Generate(ctx, models.GenerateRequest{URLs: []string{"example.com/a", "example.com/b"}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, KindUnknown, KindOf(err), "a departed caller is not a summarization failure")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.store.inserts)
}
