package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hession/llmseo/internal/config"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

func newFakeServer(t *testing.T) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	var calls []rpcRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/tools/search_web", func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		calls = append(calls, req)
		results, _ := json.MarshalIndent([]map[string]string{{"title": "Go", "link": "https://go.dev", "snippet": "Go"}}, "", "  ")
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"content": []map[string]any{{"type": "text", "text": string(results)}}},
		})
	})
	mux.HandleFunc("/mcp/tools/broken", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"boom"}}`)
	})
	mux.HandleFunc("/mcp/tools/missing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Tool not found: missing"}}`)
	})
	mux.HandleFunc("/mcp/tools/raw", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/mcp/tools", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tools":[{"name":"search_web","description":"Search","inputSchema":{"type":"object"}}]}`)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"healthy","logging":"enabled","enhancement":"enabled"}`)
	})
	mux.HandleFunc("/logs/stats", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"requests_logged":3,"responses_logged":2,"errors_logged":1,"log_directory":"mcp_logs","timestamp":"now"}`)
	})
	mux.HandleFunc("/logs/clear", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":"Logs cleared successfully"}`)
	})
	mux.HandleFunc("/custom-entries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"keyword":"go"`) {
				fmt.Fprint(w, `{"error":"Missing keyword or entry"}`)
				return
			}
			fmt.Fprint(w, `{"message":"Added custom entry for keyword 'go'","custom_entries":{}}`)
			return
		}
		fmt.Fprint(w, `{"custom_entries":{"go":[{"title":"Go","link":"https://go.dev","snippet":"s"}]},"description":"d"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClient_CallTool(t *testing.T) {
	server, calls := newFakeServer(t)
	c := New(server.URL+"/", 5*time.Second)

	results, err := c.SearchWeb(context.Background(), "golang", 3)
	if err != nil {
		t.Fatalf("SearchWeb() error: %v", err)
	}
	if len(results) != 1 || results[0].Link != "https://go.dev" {
		t.Errorf("Unexpected results: %+v", results)
	}

	if _, err := c.SearchWeb(context.Background(), "again", 1); err != nil {
		t.Fatal(err)
	}

	if len(*calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(*calls))
	}
	first := (*calls)[0]
	if first.JSONRPC != "2.0" || first.Method != "tools/call" || first.Params.Name != "search_web" {
		t.Errorf("Unexpected envelope: %+v", first)
	}
	if first.Params.Arguments["query"] != "golang" || first.Params.Arguments["num_results"] != float64(3) {
		t.Errorf("Unexpected arguments: %v", first.Params.Arguments)
	}
	if (*calls)[1].ID != first.ID+1 {
		t.Errorf("Request ids should increase: %d then %d", first.ID, (*calls)[1].ID)
	}
}

func TestClient_CallToolErrors(t *testing.T) {
	server, _ := newFakeServer(t)
	c := New(server.URL, 5*time.Second)

	_, err := c.CallTool(context.Background(), "broken", nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Message != "boom" {
		t.Errorf("Expected RPCError boom, got %v", err)
	}

	_, err = c.CallTool(context.Background(), "missing", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Expected ErrToolNotFound, got %v", err)
	}

	raw, err := c.CallTool(context.Background(), "raw", nil)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if raw != `{"status":"ok"}` {
		t.Errorf("Expected whole body, got %s", raw)
	}
}

func TestClient_Endpoints(t *testing.T) {
	server, _ := newFakeServer(t)
	c := New(server.URL, 5*time.Second)
	ctx := context.Background()

	tools, err := c.ListTools(ctx)
	if err != nil || len(tools) != 1 || tools[0].Name != "search_web" {
		t.Errorf("ListTools() = %+v, %v", tools, err)
	}

	h, err := c.Health(ctx)
	if err != nil || h.Status != "healthy" {
		t.Errorf("Health() = %+v, %v", h, err)
	}

	s, err := c.Stats(ctx)
	if err != nil || s.RequestsLogged != 3 || s.ErrorsLogged != 1 {
		t.Errorf("Stats() = %+v, %v", s, err)
	}

	msg, err := c.ClearLogs(ctx)
	if err != nil || msg != "Logs cleared successfully" {
		t.Errorf("ClearLogs() = %q, %v", msg, err)
	}

	entries, err := c.CustomEntries(ctx)
	if err != nil || len(entries["go"]) != 1 {
		t.Errorf("CustomEntries() = %v, %v", entries, err)
	}

	if err := c.AddCustomEntry(ctx, "go", config.Entry{Title: "Go", Link: "https://go.dev"}); err != nil {
		t.Errorf("AddCustomEntry() error: %v", err)
	}
	if err := c.AddCustomEntry(ctx, "", config.Entry{}); err == nil || err.Error() != "Missing keyword or entry" {
		t.Errorf("Expected server error, got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c := New(addr, time.Second)
	if _, err := c.Health(context.Background()); err == nil {
		t.Error("Expected error for unreachable server")
	}
}
