// Package mcptools exposes the memory index as MCP tools over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harun/memindex/internal/observability"
	"github.com/harun/memindex/internal/tracing"
	"github.com/harun/memindex/pkg/memory"
	"github.com/harun/memindex/pkg/notes"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

const maxToolResults = 50

// Deps holds what the tools need.
type Deps struct {
	Store    *memory.Store
	Search   *memory.SearchEngine
	Source   *notes.Source
	Embedder memory.EmbeddingProvider // optional; memory_update embeds only when set

	Threshold         float64
	MaxResults        int
	RelatedMaxResults int

	Logger zerolog.Logger
}

// SearchResponse is the memory_search payload
type SearchResponse struct {
	Query   string                `json:"query"`
	Count   int                   `json:"count"`
	Results []memory.SearchResult `json:"results"`
}

// RelatedResponse is the memory_related payload
type RelatedResponse struct {
	Path    string                `json:"path"`
	Count   int                   `json:"count"`
	Matches []memory.RelatedMatch `json:"matches"`
}

// UpdateResponse is the memory_update payload
type UpdateResponse struct {
	Path     string   `json:"path"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords"`
	Embedded bool     `json:"embedded"`
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(deps Deps, version string) *server.MCPServer {
	observability.EnsureRegistered()

	s := server.NewMCPServer(
		"memindex",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("memindex: search and maintain the metadata index of a markdown notes tree."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("memory_search",
			mcp.WithDescription("Semantically search indexed notes by the meaning of their descriptions."),
			mcp.WithString("query", mcp.Description("Natural language search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
			mcp.WithNumber("threshold", mcp.Description("Minimum cosine similarity between -1 and 1 (default 0.3)")),
		),
		instrument("memory_search", deps.Logger, memorySearch(deps)),
	)

	s.AddTool(
		mcp.NewTool("memory_related",
			mcp.WithDescription("Find notes sharing tags or description keywords with a note."),
			mcp.WithString("path", mcp.Description("Note path, absolute or relative to the notes directory"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of matches (default 5)")),
		),
		instrument("memory_related", deps.Logger, memoryRelated(deps)),
	)

	s.AddTool(
		mcp.NewTool("memory_update",
			mcp.WithDescription("Re-index a single note after it was written or edited."),
			mcp.WithString("path", mcp.Description("Note path inside the notes directory (must end with .md)"), mcp.Required()),
			mcp.WithBoolean("embed", mcp.Description("Generate an embedding for the description (default true)")),
		),
		instrument("memory_update", deps.Logger, memoryUpdate(deps)),
	)

	return s
}

// instrument records metrics and an audit event for every tool call.
func instrument(name string, logger zerolog.Logger, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = tracing.WithToolCallID(ctx, tracing.NewTraceID())
		start := time.Now()

		result, err := next(ctx, req)

		success := err == nil && result != nil && !result.IsError
		observability.RecordToolExecution(name, time.Since(start), success)
		observability.RecordToolAudit(ctx, name, success, nil)

		tracing.LoggerFromContext(ctx, logger).Debug().
			Str("tool", name).
			Bool("success", success).
			Dur("duration", time.Since(start)).
			Msg("Tool call completed")

		return result, err
	}
}

func memorySearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return toolError("query is required"), nil
		}

		opts := memory.SearchOptions{
			Threshold:  req.GetFloat("threshold", deps.Threshold),
			MaxResults: clampLimit(req.GetInt("limit", deps.MaxResults)),
		}

		results, err := deps.Search.Search(ctx, query, opts)
		if err != nil {
			if errors.Is(err, memory.ErrNoIndex) {
				return toolError("memory index not found; run `memindex rebuild --embed` first"), nil
			}
			return toolError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return toolJSON(SearchResponse{Query: query, Count: len(results), Results: results})
	}
}

func memoryRelated(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("path")
		if err != nil {
			return toolError("path is required"), nil
		}

		path, err := deps.Source.ResolvePath(raw)
		if err != nil {
			return toolError(err.Error()), nil
		}

		matches, err := deps.Store.Related(ctx, path, memory.RelatedOptions{
			MaxResults: clampLimit(req.GetInt("limit", deps.RelatedMaxResults)),
		})
		if err != nil {
			return toolError(fmt.Sprintf("related lookup failed: %v", err)), nil
		}

		return toolJSON(RelatedResponse{Path: path, Count: len(matches), Matches: matches})
	}
}

func memoryUpdate(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("path")
		if err != nil {
			return toolError("path is required"), nil
		}

		path, err := deps.Source.ResolvePath(raw)
		if err != nil {
			return toolError(err.Error()), nil
		}
		inside, err := deps.Source.Within(path)
		if err != nil {
			return toolError(err.Error()), nil
		}
		if !inside {
			return toolError(fmt.Sprintf("path escapes notes directory: %s", raw)), nil
		}

		var opts memory.UpsertOptions
		if req.GetBool("embed", true) {
			opts.Embedder = deps.Embedder
		}

		entry, err := deps.Store.Upsert(ctx, path, opts)
		if err != nil {
			if errors.Is(err, memory.ErrNoMetadata) {
				return toolError(fmt.Sprintf("no valid frontmatter in %s", path)), nil
			}
			return toolError(fmt.Sprintf("update failed: %v", err)), nil
		}

		return toolJSON(UpdateResponse{
			Path:     path,
			Tags:     entry.Tags,
			Keywords: entry.DescriptionKeywords,
			Embedded: entry.Embedding.Present(),
		})
	}
}

func clampLimit(limit int) int {
	if limit > maxToolResults {
		return maxToolResults
	}
	return limit
}

func toolJSON(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return toolText(string(b)), nil
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
