// Package mcp exposes generation and cache inspection as tools over the
// Model Context Protocol, speaking line-delimited JSON-RPC 2.0 on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/tracker"
)

// Generator produces documents for a request.
type Generator interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResult, error)
}

// CacheStatter reports cache statistics without coupling to a backend.
type CacheStatter interface {
	Stats(ctx context.Context, maxAge time.Duration) (models.CacheStats, error)
}

// Server is a minimal MCP server.
type Server struct {
	gen     Generator
	cache   CacheStatter
	tracker tracker.Tracker
	maxAge  time.Duration
	version string
	logger  *slog.Logger
}

// New creates a Server. cache and t may be nil; the matching tools then
// report that the feature is not configured.
func New(gen Generator, cache CacheStatter, t tracker.Tracker, maxAge time.Duration, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		gen:     gen,
		cache:   cache,
		tracker: t,
		maxAge:  maxAge,
		version: version,
		logger:  logger,
	}
}

// Run reads requests from r line by line and writes responses to w until r
// is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, rpcError(nil, CodeParseError, "parse error"))
			continue
		}
		if req.JSONRPC != "2.0" {
			s.write(w, rpcError(req.ID, CodeInvalidRequest, "jsonrpc must be 2.0"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "llmstxt", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return result(req.ID, map[string]any{})
	case "tools/list":
		defs := make([]ToolDefinition, len(tools))
		for i, t := range tools {
			defs[i] = t.def
		}
		return result(req.ID, ToolsListResult{Tools: defs})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return rpcError(req.ID, CodeInvalidParams, "invalid params")
		}
		t, ok := lookupTool(params.Name)
		if !ok {
			return result(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
		}
		s.logger.Debug("mcp tool call", "tool", params.Name)
		return result(req.ID, t.handle(ctx, s, params.Arguments))
	default:
		if len(req.ID) == 0 {
			return nil
		}
		return rpcError(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp: marshal response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("mcp: write response", "error", err)
	}
}
