package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/extract"
	"github.com/hession/llmseo/internal/websearch"
)

type stubProvider struct {
	results []websearch.Result
	err     error
	limit   int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Search(ctx context.Context, query string, limit int) (websearch.Response, error) {
	p.limit = limit
	if p.err != nil {
		return websearch.Response{}, p.err
	}
	return websearch.Response{Query: query, Provider: "stub", Results: p.results}, nil
}

type call struct {
	name   string
	args   map[string]any
	result any
}

type recorderStub struct {
	calls []call
}

func (r *recorderStub) LogToolCall(name string, args map[string]any, result any) {
	r.calls = append(r.calls, call{name, args, result})
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	tool := NewSearchWebTool(&stubProvider{}, nil, 5)
	if err := registry.Register(tool); err != nil {
		t.Fatalf("Failed to register tool: %v", err)
	}

	// Test duplicate registration
	if err := registry.Register(tool); err == nil {
		t.Error("Duplicate registration should return error")
	}

	got, exists := registry.Get("search_web")
	if !exists {
		t.Error("Should be able to get registered tool")
	}
	if got.Name() != "search_web" {
		t.Errorf("Tool name mismatch: expected search_web, got %s", got.Name())
	}

	if _, exists = registry.Get("not_exist"); exists {
		t.Error("Should not get unregistered tool")
	}

	_, err := registry.Execute(context.Background(), "not_exist", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Expected ErrToolNotFound, got %v", err)
	}

	_, err = registry.Execute(context.Background(), "search_web", map[string]any{"num_results": 3})
	if err == nil || !strings.Contains(err.Error(), "missing required parameter: query") {
		t.Errorf("Expected missing query error, got %v", err)
	}
}

func TestInputSchema(t *testing.T) {
	schema := InputSchema(NewSearchWebTool(&stubProvider{}, nil, 7).Parameters())

	props := schema["properties"].(map[string]any)
	num := props["num_results"].(map[string]any)
	if num["type"] != "integer" || num["minimum"] != 1 || num["maximum"] != websearch.MaxLimit || num["default"] != 7 {
		t.Errorf("Unexpected num_results schema: %v", num)
	}
	if _, ok := props["query"].(map[string]any)["minimum"]; ok {
		t.Error("query should not carry bounds")
	}

	fetch := InputSchema(NewFetchURLTool(extract.NewFetcher(config.ExtractConfig{}), extract.DefaultOptions()).Parameters())
	format := fetch["properties"].(map[string]any)["format"].(map[string]any)
	if enum, _ := format["enum"].([]string); len(enum) != 3 {
		t.Errorf("format should list 3 values: %v", format)
	}

	if _, ok := InputSchema(nil)["required"]; ok {
		t.Error("Empty schema should have no required list")
	}
}

func TestSearchWebTool_Execute(t *testing.T) {
	provider := &stubProvider{results: []websearch.Result{{Title: "Go", Link: "https://go.dev", Snippet: "Go"}}}
	rec := &recorderStub{}
	tool := NewSearchWebTool(provider, rec, 5)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "python tips", "num_results": float64(3)})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out, "\n  {") {
		t.Errorf("Expected 2-space indented JSON, got %s", out)
	}

	var results []websearch.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("Output is not a result list: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Go" {
		t.Errorf("Expected the provider result only, got %+v", results)
	}
	if provider.limit != 3 {
		t.Errorf("Provider limit = %d, want 3", provider.limit)
	}

	if len(rec.calls) != 1 || rec.calls[0].name != "search_web" || rec.calls[0].args["query"] != "python tips" {
		t.Fatalf("Tool call not recorded: %+v", rec.calls)
	}
	if logged, ok := rec.calls[0].result.([]websearch.Result); !ok || len(logged) != 1 || logged[0].Title != "Go" {
		t.Errorf("Tool call should log the provider results, got %+v", rec.calls[0].result)
	}
}

func TestSearchWebTool_ResultBounds(t *testing.T) {
	many := make([]websearch.Result, 15)
	for i := range many {
		many[i] = websearch.Result{Title: fmt.Sprintf("r%d", i), Link: fmt.Sprintf("https://example.com/%d", i)}
	}

	tests := []struct {
		name     string
		provider *stubProvider
		n        int
		want     int
	}{
		{"provider overshoots", &stubProvider{results: many}, 10, 10},
		{"smaller request", &stubProvider{results: many}, 3, 3},
		{"empty", &stubProvider{}, 5, 0},
		{"missing credentials", &stubProvider{err: websearch.ErrMissingCredentials}, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorderStub{}
			results := NewSearchWebTool(tt.provider, rec, 5).Search(context.Background(), "python openai", tt.n)
			if len(results) != tt.want {
				t.Fatalf("got %d results, want %d", len(results), tt.want)
			}
			if results == nil {
				t.Error("results should never be nil")
			}
			if logged := rec.calls[0].result.([]websearch.Result); len(logged) != tt.want {
				t.Errorf("logged %d results, want %d", len(logged), tt.want)
			}
		})
	}
}

func TestSearchWebTool_NumResults(t *testing.T) {
	tests := []struct {
		name string
		arg  any
		want int
	}{
		{"default", nil, 5},
		{"float", float64(7), 7},
		{"string", "2", 2},
		{"above max", float64(50), 10},
		{"zero uses default", float64(0), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{}
			tool := NewSearchWebTool(provider, nil, 5)
			args := map[string]any{"query": "q"}
			if tt.arg != nil {
				args["num_results"] = tt.arg
			}
			if _, err := tool.Execute(context.Background(), args); err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if provider.limit != tt.want {
				t.Errorf("limit = %d, want %d", provider.limit, tt.want)
			}
		})
	}
}

func TestSearchWebTool_Errors(t *testing.T) {
	tool := NewSearchWebTool(&stubProvider{err: websearch.ErrMissingCredentials}, nil, 5)

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("Missing query should return error")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "q", "num_results": "many"}); err == nil {
		t.Error("Invalid num_results should return error")
	}

	results := tool.Search(context.Background(), "q", 5)
	if len(results) != 1 || results[0].Error != "Server configuration error: API keys missing." {
		t.Errorf("Expected single error entry, got %+v", results)
	}
}

func TestFetchURLTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><main><h1>Hello</h1><p>`+strings.Repeat("Robots are great. ", 10)+`</p></main></body></html>`)
		default:
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "plain body")
		}
	}))
	defer server.Close()

	tool := NewFetchURLTool(extract.NewFetcher(config.ExtractConfig{}), extract.DefaultOptions())

	tests := []struct {
		name     string
		args     map[string]any
		contains string
	}{
		{"text", map[string]any{"url": server.URL + "/page"}, "Robots are great."},
		{"markdown", map[string]any{"url": server.URL + "/page", "format": "markdown"}, "# Hello"},
		{"html", map[string]any{"url": server.URL + "/page", "format": "html"}, "<h1>Hello</h1>"},
		{"non-html", map[string]any{"url": server.URL + "/plain"}, "plain body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tool.Execute(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			var payload map[string]any
			if err := json.Unmarshal([]byte(out), &payload); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if !strings.Contains(payload["content"].(string), tt.contains) {
				t.Errorf("Content %q does not contain %q", payload["content"], tt.contains)
			}
		})
	}

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("Missing url should return error")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"url": server.URL, "format": "pdf"}); err == nil {
		t.Error("Unsupported format should return error")
	}
}

func TestSchemas(t *testing.T) {
	registry := NewDefaultRegistry(
		NewSearchWebTool(&stubProvider{}, nil, 5),
		NewFetchURLTool(extract.NewFetcher(config.ExtractConfig{}), extract.DefaultOptions()),
	)

	schemas := registry.GetSchemas()
	if len(schemas) != 2 {
		t.Fatalf("Expected 2 tool schemas, got %d", len(schemas))
	}
	for _, schema := range schemas {
		if schema.Type != "function" {
			t.Errorf("Schema type should be function, got %s", schema.Type)
		}
		if schema.Function.Description == "" {
			t.Error("Schema function description should not be empty")
		}
	}

	mcp := registry.MCPSchemas()
	if mcp[0].Name != "fetch_url" || mcp[1].Name != "search_web" {
		t.Errorf("MCP schemas should be sorted by name: %+v", mcp)
	}
	required, _ := mcp[1].InputSchema["required"].([]string)
	if len(required) != 1 || required[0] != "query" {
		t.Errorf("search_web should require query: %v", mcp[1].InputSchema)
	}
}
