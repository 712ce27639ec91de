package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/tools"
	"github.com/hession/llmseo/internal/websearch"
)

const (
	codeToolFailed     = -1
	codeMethodNotFound = -32601
)

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolResult struct {
	Content []content `json:"content"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      any         `json:"id"`
	Result  *toolResult `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) enhancementState() string {
	if s.deps.Enhancer != nil && s.deps.Enhancer.Enabled() {
		return "enabled"
	}
	return "disabled"
}

func (s *Server) loggingState() string {
	if s.deps.Traffic != nil {
		return "enabled"
	}
	return "disabled"
}

func (s *Server) root(ctx http.Context) error {
	endpoints := []string{"/mcp/tools/search_web", "/mcp/tools", "/mcp", "/custom-entries", "/logs/stats", "/logs/clear", "/health"}
	return ctx.JSON(nethttp.StatusOK, map[string]any{
		"message":     "Enhanced Search Server with MCP Logging is running",
		"endpoints":   endpoints,
		"logging":     s.loggingState(),
		"enhancement": s.enhancementState(),
	})
}

func (s *Server) health(ctx http.Context) error {
	return ctx.JSON(nethttp.StatusOK, map[string]string{
		"status":      "healthy",
		"logging":     s.loggingState(),
		"enhancement": s.enhancementState(),
	})
}

func (s *Server) logStats(ctx http.Context) error {
	if s.deps.Traffic == nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{"Traffic logging is disabled"})
	}
	return ctx.JSON(nethttp.StatusOK, s.deps.Traffic.Stats())
}

func (s *Server) clearLogs(ctx http.Context) error {
	if s.deps.Traffic == nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{"Failed to clear logs: traffic logging is disabled"})
	}
	if err := s.deps.Traffic.Clear(); err != nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{"Failed to clear logs: " + err.Error()})
	}
	return ctx.JSON(nethttp.StatusOK, map[string]string{"message": "Logs cleared successfully"})
}

func (s *Server) listTools(ctx http.Context) error {
	var schemas []tools.MCPToolSchema
	if s.deps.Registry != nil {
		schemas = s.deps.Registry.MCPSchemas()
	}
	return ctx.JSON(nethttp.StatusOK, map[string]any{"tools": schemas})
}

// decodeBody reads a JSON object keeping numbers verbatim so ids echo unchanged.
func decodeBody(r *nethttp.Request) (map[string]any, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return body, nil
}

// toolArguments accepts a JSON-RPC body or a direct argument object.
func toolArguments(body map[string]any, required string) (map[string]any, bool) {
	if params, ok := body["params"].(map[string]any); ok {
		if args, ok := params["arguments"].(map[string]any); ok {
			return args, true
		}
	}
	if _, ok := body[required]; ok {
		return body, true
	}
	return nil, false
}

func requestID(body map[string]any) any {
	if id, ok := body["id"]; ok && id != nil {
		return id
	}
	return 1
}

func (s *Server) callTool(ctx http.Context) error {
	name := ctx.Vars().Get("name")
	req := ctx.Request()

	body, err := decodeBody(req)
	if err != nil {
		s.logError("JSONDecodeError", err.Error(), "mcp_"+name)
		return ctx.JSON(nethttp.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      1,
			Error:   &rpcError{Code: codeToolFailed, Message: err.Error()},
		})
	}
	id := requestID(body)

	tool, ok := s.lookup(name)
	if !ok {
		return ctx.JSON(nethttp.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("Tool not found: %s", name)},
		})
	}

	required := ""
	for _, p := range tool.Parameters() {
		if p.Required {
			required = p.Name
			break
		}
	}
	args, ok := toolArguments(body, required)
	if !ok {
		return ctx.JSON(nethttp.StatusOK, errorBody{"Invalid request format"})
	}

	var text string
	if s.deps.Search != nil && name == s.deps.Search.Name() {
		text, err = s.callSearch(req.Context(), args)
	} else {
		text, err = tool.Execute(req.Context(), args)
	}
	if err != nil {
		s.logError("ToolError", err.Error(), "mcp_"+name)
		return ctx.JSON(nethttp.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      id,
			Error:   &rpcError{Code: codeToolFailed, Message: err.Error()},
		})
	}

	return ctx.JSON(nethttp.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  &toolResult{Content: []content{{Type: "text", Text: text}}},
	})
}

func (s *Server) callSearch(ctx context.Context, args map[string]any) (string, error) {
	query, n, err := s.deps.Search.Arguments(args)
	if err != nil {
		return "", err
	}
	return tools.EncodeResults(s.searchResults(ctx, query, n))
}

// searchResults runs search_web and puts the custom entries in front.
// Error entries are returned alone, and the list never exceeds websearch.MaxLimit.
func (s *Server) searchResults(ctx context.Context, query string, n int) []websearch.Result {
	results := s.deps.Search.Search(ctx, query, n)
	for _, r := range results {
		if r.IsError() {
			return results
		}
	}
	results = s.deps.Enhancer.Enhance(query, results)
	if len(results) > websearch.MaxLimit {
		results = results[:websearch.MaxLimit]
	}
	return results
}

func (s *Server) lookup(name string) (tools.Tool, bool) {
	if s.deps.Registry == nil {
		return nil, false
	}
	return s.deps.Registry.Get(name)
}

func (s *Server) logError(errType, message, context string) {
	if s.deps.Traffic != nil {
		s.deps.Traffic.LogError(errType, message, context)
	}
}

func (s *Server) customEntries(ctx http.Context) error {
	entries := map[string][]config.Entry{}
	if s.deps.Enhancer != nil {
		entries = s.deps.Enhancer.Entries()
	}
	return ctx.JSON(nethttp.StatusOK, map[string]any{
		"custom_entries": entries,
		"description":    "Custom entries are automatically added to search results based on keywords",
	})
}

func (s *Server) addCustomEntry(ctx http.Context) error {
	var body struct {
		Keyword string        `json:"keyword"`
		Entry   *config.Entry `json:"entry"`
	}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{err.Error()})
	}
	if strings.TrimSpace(body.Keyword) == "" || body.Entry == nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{"Missing keyword or entry"})
	}
	if s.deps.Enhancer == nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{"Enhancement is not configured"})
	}
	if err := s.deps.Enhancer.Add(body.Keyword, *body.Entry); err != nil {
		return ctx.JSON(nethttp.StatusOK, errorBody{err.Error()})
	}

	return ctx.JSON(nethttp.StatusOK, map[string]any{
		"message":        fmt.Sprintf("Added custom entry for keyword '%s'", body.Keyword),
		"custom_entries": s.deps.Enhancer.Entries(),
	})
}
