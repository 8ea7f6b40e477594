package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// fakeTracker implements tracker.Tracker for testing.
type fakeTracker struct {
	summaries []models.GenerationSummary
	recent    []models.GenerationRecord
	gotLimit  int
	gotHost   string
}

func (f *fakeTracker) Record(context.Context, models.GenerationRecord) error { return nil }

func (f *fakeTracker) Recent(_ context.Context, limit int) ([]models.GenerationRecord, error) {
	f.gotLimit = limit
	return f.recent, nil
}

func (f *fakeTracker) Summary(_ context.Context, host string) ([]models.GenerationSummary, error) {
	f.gotHost = host
	return f.summaries, nil
}

func (f *fakeTracker) Close() error { return nil }

type fakeCache struct {
	stats models.CacheStats
}

func (f *fakeCache) Stats(context.Context, time.Duration) (models.CacheStats, error) {
	return f.stats, nil
}

type fakeGenerator struct {
	got models.GenerateRequest
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, req models.GenerateRequest) (*models.GenerateResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.GenerateResult{Documents: models.Documents{LLMsTxt: "index", LLMsFullTxt: "full"}}, nil
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	require.NoError(t, err)
	line = append(line, '\n')

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), bytes.NewReader(line), &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "raw: %s", out.String())
	return resp
}

// decodeResult re-decodes a response result into the concrete type.
func decodeResult(t *testing.T, resp Response, v any) {
	t.Helper()
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func callTool(t *testing.T, srv *Server, name string, args any) ToolCallResult {
	t.Helper()
	rawArgs, err := json.Marshal(args)
	require.NoError(t, err)
	params, err := json.Marshal(ToolCallParams{Name: name, Arguments: rawArgs})
	require.NoError(t, err)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`7`), Method: "tools/call", Params: params})
	require.Nil(t, resp.Error)

	var result ToolCallResult
	decodeResult(t, resp, &result)
	return result
}

func TestInitialize(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, nil, time.Hour, "test", nil)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})
	require.Nil(t, resp.Error)

	var result InitializeResult
	decodeResult(t, resp, &result)
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, "llmstxt", result.ServerInfo.Name)
	assert.Equal(t, "test", result.ServerInfo.Version)
}

func TestToolsList(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, nil, time.Hour, "test", nil)
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/list"})

	var result ToolsListResult
	decodeResult(t, resp, &result)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.Subset(t, names, []string{"llmstxt_generate", "llmstxt_cache_stats", "llmstxt_stats", "llmstxt_recent"})
}

func TestNotificationHasNoResponse(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, nil, time.Hour, "test", nil)
	in := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n"

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in), &out))
	assert.Zero(t, out.Len(), out.String())
}

func TestParseAndMethodErrors(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, nil, time.Hour, "test", nil)
	in := "not json\n" + `{"jsonrpc":"2.0","id":3,"method":"resources/list"}` + "\n"

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), strings.NewReader(in), &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, out.String())

	var first, second Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.NotNil(t, first.Error)
	assert.Equal(t, CodeParseError, first.Error.Code)
	require.NotNil(t, second.Error)
	assert.Equal(t, CodeMethodNotFound, second.Error.Code)
}

func TestGenerateTool(t *testing.T) {
	gen := &fakeGenerator{}
	srv := New(gen, nil, nil, time.Hour, "test", nil)

	res := callTool(t, srv, "llmstxt_generate", map[string]any{"urls": []string{"example.com/a"}, "firecrawl_api_key": "fc-caller"})
	require.False(t, res.IsError, "%+v", res)
	assert.Equal(t, "index", res.Content[0].Text)
	assert.Equal(t, "fc-caller", gen.got.BYOKKey)
	assert.Equal(t, []string{"example.com/a"}, gen.got.URLs)

	res = callTool(t, srv, "llmstxt_generate", map[string]any{"urls": []string{"example.com/a"}, "full": true})
	assert.Equal(t, "full", res.Content[0].Text)

	res = callTool(t, srv, "llmstxt_generate", map[string]any{})
	assert.True(t, res.IsError, "urls are required")

	gen.err = errors.New("scrape: failed to scrape: boom")
	res = callTool(t, srv, "llmstxt_generate", map[string]any{"urls": []string{"example.com"}})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "boom")
}

func TestCacheStatsTool(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, nil, 72*time.Hour, "test", nil)
	assert.Contains(t, callTool(t, srv, "llmstxt_cache_stats", nil).Content[0].Text, "not configured")

	srv = New(&fakeGenerator{}, &fakeCache{stats: models.CacheStats{Entries: 4, Hosts: 2, Stale: 1}}, nil, 72*time.Hour, "test", nil)
	text := callTool(t, srv, "llmstxt_cache_stats", nil).Content[0].Text
	for _, want := range []string{"Entries: 4", "Hosts:   2", "Stale:   1", "72h0m0s"} {
		assert.Contains(t, text, want)
	}
}

func TestStatsTools(t *testing.T) {
	ft := &fakeTracker{
		summaries: []models.GenerationSummary{{Host: "example.com", RequestCount: 3, CacheHits: 2, TotalPages: 2, TotalTokens: 40}},
		recent:    []models.GenerationRecord{{Host: "example.com", NoLimit: true, URLCount: 2, PageCount: 2, TotalTokens: 40, DurationMs: 1200, CreatedAt: time.Now()}},
	}
	srv := New(&fakeGenerator{}, nil, ft, time.Hour, "test", nil)

	text := callTool(t, srv, "llmstxt_stats", map[string]any{"host": "example.com"}).Content[0].Text
	assert.Equal(t, "example.com", ft.gotHost)
	assert.Contains(t, text, "example.com")
	assert.Contains(t, text, "restricted")

	text = callTool(t, srv, "llmstxt_recent", nil).Content[0].Text
	assert.Equal(t, 20, ft.gotLimit, "default limit")
	assert.Contains(t, text, "unrestricted")
	assert.Contains(t, text, "1200ms")

	assert.True(t, callTool(t, srv, "llmstxt_recent", map[string]any{"limit": 0}).IsError)
}

func TestUnknownTool(t *testing.T) {
	srv := New(&fakeGenerator{}, nil, nil, time.Hour, "test", nil)
	assert.True(t, callTool(t, srv, "nope", nil).IsError)
}
