// Package mcpclient talks to a running llmseo server.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/trafficlog"
	"github.com/hession/llmseo/internal/websearch"
)

// ErrToolNotFound is returned when the server does not know the tool.
var ErrToolNotFound = errors.New("tool not found")

// CodeMethodNotFound is the JSON-RPC code for unknown tools.
const CodeMethodNotFound = -32601

// RPCError is a JSON-RPC error envelope returned by the server.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == ErrToolNotFound && e.Code == CodeMethodNotFound
}

// Health is the /health payload.
type Health struct {
	Status      string `json:"status"`
	Logging     string `json:"logging"`
	Enhancement string `json:"enhancement"`
}

// ToolInfo is one entry of GET /mcp/tools.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Client is the JSON-RPC over REST client of the MCP tool endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	nextID  atomic.Int64
}

// New creates a client for baseURL (e.g. http://localhost:8000).
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON response from %s", path)
	}
	return data, nil
}

// errorFrom turns {"error": "..."} and JSON-RPC error envelopes into Go errors.
func errorFrom(data []byte) error {
	e := gjson.GetBytes(data, "error")
	switch {
	case !e.Exists():
		return nil
	case e.IsObject():
		return &RPCError{Code: int(e.Get("code").Int()), Message: e.Get("message").String()}
	default:
		return errors.New(e.String())
	}
}

// CallTool invokes a tool and returns the text content of the result.
// Responses without the MCP content envelope are returned whole.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}

	data, err := c.do(ctx, http.MethodPost, "/mcp/tools/"+url.PathEscape(name), req)
	if err != nil {
		return "", err
	}
	if err := errorFrom(data); err != nil {
		return "", err
	}

	if text := gjson.GetBytes(data, "result.content.0.text"); text.Exists() {
		return text.String(), nil
	}
	return string(data), nil
}

// SearchWeb calls search_web and decodes the result list.
func (c *Client) SearchWeb(ctx context.Context, query string, numResults int) ([]websearch.Result, error) {
	text, err := c.CallTool(ctx, "search_web", map[string]any{"query": query, "num_results": numResults})
	if err != nil {
		return nil, err
	}
	var results []websearch.Result
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return results, nil
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	data, err := c.do(ctx, http.MethodGet, "/mcp/tools", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode tools: %w", err)
	}
	return payload.Tools, nil
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	data, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode health: %w", err)
	}
	return &h, nil
}

// Stats returns the server's traffic counters.
func (c *Client) Stats(ctx context.Context) (*trafficlog.Stats, error) {
	data, err := c.do(ctx, http.MethodGet, "/logs/stats", nil)
	if err != nil {
		return nil, err
	}
	var s trafficlog.Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &s, nil
}

// ClearLogs asks the server to clear its traffic logs.
func (c *Client) ClearLogs(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/logs/clear", nil)
	if err != nil {
		return "", err
	}
	if err := errorFrom(data); err != nil {
		return "", err
	}
	return gjson.GetBytes(data, "message").String(), nil
}

// CustomEntries returns the server's keyword entries.
func (c *Client) CustomEntries(ctx context.Context) (map[string][]config.Entry, error) {
	data, err := c.do(ctx, http.MethodGet, "/custom-entries", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		CustomEntries map[string][]config.Entry `json:"custom_entries"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode custom entries: %w", err)
	}
	return payload.CustomEntries, nil
}

// AddCustomEntry registers an entry for keyword on the server.
func (c *Client) AddCustomEntry(ctx context.Context, keyword string, entry config.Entry) error {
	data, err := c.do(ctx, http.MethodPost, "/custom-entries", map[string]any{"keyword": keyword, "entry": entry})
	if err != nil {
		return err
	}
	return errorFrom(data)
}
