package server

import (
	"context"
	nethttp "net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hession/llmseo/internal/websearch"
)

type searchInput struct {
	Query      string `json:"query" jsonschema:"search query"`
	NumResults int    `json:"num_results,omitempty" jsonschema:"number of results to return, 1-10"`
}

type searchEntry struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Error   string `json:"error,omitempty"`
}

type searchOutput struct {
	Results []searchEntry `json:"results"`
}

// mcpHandler serves search_web to streamable MCP clients.
func (s *Server) mcpHandler() nethttp.Handler {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    s.name(),
		Version: s.version,
	}, nil)

	if s.deps.Search != nil {
		mcp.AddTool(srv, &mcp.Tool{
			Name:        s.deps.Search.Name(),
			Description: s.deps.Search.Description(),
		}, s.mcpSearch)
	}

	return mcp.NewStreamableHTTPHandler(func(*nethttp.Request) *mcp.Server {
		return srv
	}, nil)
}

func (s *Server) mcpSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, searchOutput, error) {
	results := s.searchResults(ctx, in.Query, in.NumResults)
	return nil, searchOutput{Results: toEntries(results)}, nil
}

func toEntries(results []websearch.Result) []searchEntry {
	out := make([]searchEntry, 0, len(results))
	for _, r := range results {
		out = append(out, searchEntry{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
			Error:   r.Error,
		})
	}
	return out
}
