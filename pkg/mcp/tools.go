package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pario-ai/llmstxt/pkg/models"
)

type generateArgs struct {
	URLs   []string `json:"urls"`
	APIKey string   `json:"firecrawl_api_key"`
	Full   bool     `json:"full"`
}

type statsArgs struct {
	Host string `json:"host"`
}

type recentArgs struct {
	Limit int `json:"limit"`
}

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "llmstxt_generate",
			Description: "Generate llms.txt for a website from a list of its page URLs. Returns the index by default, or llms-full.txt when full is true.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"urls"},
				"properties": map[string]any{
					"urls": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Page URLs of one website; the first URL decides the host",
					},
					"firecrawl_api_key": map[string]any{
						"type":        "string",
						"description": "Your own Firecrawl API key (optional, raises the URL limit from 10 to 1000)",
					},
					"full": map[string]any{
						"type":        "boolean",
						"description": "Return llms-full.txt instead of llms.txt",
					},
				},
			},
		},
		handle: handleGenerate,
	},
	{
		def: ToolDefinition{
			Name:        "llmstxt_cache_stats",
			Description: "Show generation cache statistics (entries, hosts, stale entries).",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		handle: handleCacheStats,
	},
	{
		def: ToolDefinition{
			Name:        "llmstxt_stats",
			Description: "Show generation statistics per host and tier, optionally for one host.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"host": map[string]any{
						"type":        "string",
						"description": "Filter by host (optional)",
					},
				},
			},
		},
		handle: handleStats,
	},
	{
		def: ToolDefinition{
			Name:        "llmstxt_recent",
			Description: "List the most recent generations.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "How many generations to list (default 20)",
					},
				},
			},
		},
		handle: handleRecent,
	},
}

func lookupTool(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func handleGenerate(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args generateArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}
	if len(args.URLs) == 0 {
		return errorResult("urls is required")
	}

	res, err := s.gen.Generate(ctx, models.GenerateRequest{URLs: args.URLs, BYOKKey: args.APIKey})
	if err != nil {
		return errorResult("Error generating llms.txt: " + err.Error())
	}
	if args.Full {
		return textResult(res.LLMsFullTxt)
	}
	return textResult(res.LLMsTxt)
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx, s.maxAge)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats, s.maxAge))
}

func handleStats(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Generation tracking is not enabled.")
	}
	var args statsArgs
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	rows, err := s.tracker.Summary(ctx, args.Host)
	if err != nil {
		return errorResult("Error fetching stats: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleRecent(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Generation tracking is not enabled.")
	}
	args := recentArgs{Limit: 20}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	if args.Limit <= 0 || args.Limit > 500 {
		return errorResult(fmt.Sprintf("limit must be between 1 and 500, got %d", args.Limit))
	}
	recs, err := s.tracker.Recent(ctx, args.Limit)
	if err != nil {
		return errorResult("Error fetching generations: " + err.Error())
	}
	return textResult(formatRecent(recs))
}
