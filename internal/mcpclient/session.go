package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hession/llmseo/internal/websearch"
)

// Session is a streamable MCP session with the server's /mcp endpoint.
type Session struct {
	cs *mcp.ClientSession
}

// Connect opens a session. httpClient may be nil.
func Connect(ctx context.Context, endpoint, version string, httpClient *http.Client) (*Session, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "llmseo-client",
		Version: version,
	}, nil)

	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP endpoint %s: %w", endpoint, err)
	}
	return &Session{cs: cs}, nil
}

// Tools lists tool names.
func (s *Session) Tools(ctx context.Context) ([]string, error) {
	var names []string
	for tool, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("failed to list MCP tools: %w", err)
		}
		if tool != nil {
			names = append(names, tool.Name)
		}
	}
	return names, nil
}

// Search calls search_web over MCP.
func (s *Session) Search(ctx context.Context, query string, numResults int) ([]websearch.Result, error) {
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_web",
		Arguments: map[string]any{"query": query, "num_results": numResults},
	})
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, fmt.Errorf("search_web failed: %s", contentText(res))
	}

	var out struct {
		Results []websearch.Result `json:"results"`
	}
	raw := []byte(contentText(res))
	if res.StructuredContent != nil {
		if encoded, err := json.Marshal(res.StructuredContent); err == nil {
			raw = encoded
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode search_web output: %w", err)
	}
	return out.Results, nil
}

// SearchWeb makes a session usable as an llm.Searcher.
func (s *Session) SearchWeb(ctx context.Context, query string, numResults int) ([]websearch.Result, error) {
	return s.Search(ctx, query, numResults)
}

// Close ends the session.
func (s *Session) Close() error {
	return s.cs.Close()
}

func contentText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
