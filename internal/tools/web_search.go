package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/websearch"
)

// ToolCallRecorder receives every completed tool call.
type ToolCallRecorder interface {
	LogToolCall(name string, args map[string]any, result any)
}

// SearchWebTool searches the web and records the call. It returns the
// provider's results as is; enhancement belongs to the HTTP endpoints.
type SearchWebTool struct {
	provider     websearch.Provider
	recorder     ToolCallRecorder
	defaultLimit int
}

// NewSearchWebTool creates the search tool. recorder may be nil.
func NewSearchWebTool(provider websearch.Provider, recorder ToolCallRecorder, defaultLimit int) *SearchWebTool {
	return &SearchWebTool{
		provider:     provider,
		recorder:     recorder,
		defaultLimit: websearch.ClampLimit(defaultLimit),
	}
}

func (t *SearchWebTool) Name() string {
	return "search_web"
}

func (t *SearchWebTool) Description() string {
	return "Search the web using Google Custom Search and return a list of results with title, link and snippet."
}

func (t *SearchWebTool) Parameters() []ParameterDef {
	return []ParameterDef{
		{
			Name:        "query",
			Type:        "string",
			Description: "Search query",
			Required:    true,
		},
		{
			Name:        "num_results",
			Type:        "integer",
			Description: "Number of results to return (1-10, default 5)",
			Minimum:     intPtr(1),
			Maximum:     intPtr(websearch.MaxLimit),
			Default:     t.defaultLimit,
		},
	}
}

// Search never fails: upstream errors become a single error entry.
// At most websearch.MaxLimit results are returned.
func (t *SearchWebTool) Search(ctx context.Context, query string, numResults int) []websearch.Result {
	if numResults <= 0 {
		numResults = t.defaultLimit
	}
	numResults = websearch.ClampLimit(numResults)

	var results []websearch.Result
	resp, err := t.provider.Search(ctx, query, numResults)
	if err != nil {
		msg := websearch.Describe(err)
		logger.Warn("search_web failed for %q: %s", query, msg)
		results = websearch.ErrorResults(msg)
	} else {
		results = resp.Results
		if results == nil {
			results = []websearch.Result{}
		}
		if len(results) > numResults {
			results = results[:numResults]
		}
	}

	if t.recorder != nil {
		t.recorder.LogToolCall(t.Name(), map[string]any{"query": query, "num_results": numResults}, results)
	}
	return results
}

func (t *SearchWebTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, n, err := t.Arguments(args)
	if err != nil {
		return "", err
	}
	return EncodeResults(t.Search(ctx, query, n))
}

// Arguments validates query and num_results.
func (t *SearchWebTool) Arguments(args map[string]any) (string, int, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", 0, fmt.Errorf("missing required parameter: query")
	}
	n, err := intArg(args, "num_results", t.defaultLimit)
	if err != nil {
		return "", 0, err
	}
	return query, n, nil
}

// EncodeResults renders a result list as 2-space indented JSON.
func EncodeResults(results []websearch.Result) (string, error) {
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}
	return string(payload), nil
}

// intArg reads an integer argument that may arrive as a JSON number or string.
func intArg(args map[string]any, name string, def int) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %v", name, raw)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %q", name, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid %s: %v", name, raw)
	}
}
