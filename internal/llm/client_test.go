package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hession/llmseo/internal/websearch"
)

type capturedRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

// newTestServer answers chat completions and records the last request.
func newTestServer(t *testing.T, reply string, last *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header, got %s", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if last != nil {
			if err := json.Unmarshal(body, last); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completion(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Chat(t *testing.T) {
	var req capturedRequest
	server := newTestServer(t, "Hello there", &req)

	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))
	got, err := client.Chat(context.Background(), []Message{System("be brief"), User("Hi")})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if got != "Hello there" {
		t.Errorf("Expected 'Hello there', got %q", got)
	}

	if req.Model != "test-model" {
		t.Errorf("Expected model test-model, got %s", req.Model)
	}
	if req.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %f", req.Temperature)
	}
	if req.MaxTokens != 1000 {
		t.Errorf("Expected max_tokens 1000, got %d", req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "Hi" {
		t.Errorf("Unexpected messages: %+v", req.Messages)
	}
}

func TestClient_ChatCallOptions(t *testing.T) {
	var req capturedRequest
	server := newTestServer(t, "ok", &req)

	client := New("test-key", server.URL+"/v1/", "test-model", 0.7, 1000, WithMaxRetries(0))
	_, err := client.Chat(context.Background(), []Message{User("Hi")},
		WithModel("gpt-4o-mini"), WithTemperature(0.2), WithMaxTokens(50))
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if req.Model != "gpt-4o-mini" || req.Temperature != 0.2 || req.MaxTokens != 50 {
		t.Errorf("Call options not applied: %+v", req)
	}
}

func TestClient_ChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))
	_, err := client.Chat(context.Background(), []Message{User("Hi")})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

// newStreamServer answers with server-sent chunks and records the last request.
func newStreamServer(t *testing.T, parts []string, last *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if last != nil {
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, last); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range parts {
			chunk, _ := json.Marshal(map[string]any{
				"id": "c1", "object": "chat.completion.chunk", "created": 1, "model": "test-model",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": part}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_ChatStream(t *testing.T) {
	server := newStreamServer(t, []string{"Hel", "lo"}, nil)

	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))
	var parts []string
	got, err := client.ChatStream(context.Background(), []Message{User("Hi")}, func(s string) {
		parts = append(parts, s)
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("Expected 'Hello', got %q", got)
	}
	if len(parts) != 2 {
		t.Errorf("Expected 2 deltas, got %d", len(parts))
	}
}

func TestClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"gpt-4o","object":"model","created":1,"owned_by":"openai"}]}`)
	}))
	defer server.Close()

	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))
	ids, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "gpt-4o" {
		t.Errorf("Unexpected models: %v", ids)
	}
}

func TestExtractSearchQueries(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     []string
	}{
		{
			name:     "keyword with many words keeps five",
			messages: []Message{User("What is the latest news about OpenAI GPT models")},
			want:     []string{"What is the latest news"},
		},
		{
			name:     "too short",
			messages: []Message{User("latest news")},
			want:     nil,
		},
		{
			name:     "no keyword",
			messages: []Message{User("Tell me a joke please")},
			want:     nil,
		},
		{
			name:     "assistant messages ignored",
			messages: []Message{Assistant("How to search the web today"), User("how to bake bread")},
			want:     []string{"how to bake bread"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractSearchQueries(tt.messages)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("ExtractSearchQueries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatSearchResults(t *testing.T) {
	if got := FormatSearchResults(nil); got != "No search results found." {
		t.Errorf("Unexpected empty format: %q", got)
	}

	got := FormatSearchResults([]websearch.Result{
		{Error: "boom"},
		{Title: "Go", Link: "https://go.dev", Snippet: "The Go language"},
	})
	want := "Web Search Results:\n\n2. Go\n   URL: https://go.dev\n   The Go language\n\n"
	if got != want {
		t.Errorf("FormatSearchResults() = %q, want %q", got, want)
	}
}

type fakeSearcher struct {
	queries []string
	err     error
}

func (f *fakeSearcher) SearchWeb(ctx context.Context, query string, n int) ([]websearch.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return []websearch.Result{{Title: "Result for " + query, Link: "https://example.com", Snippet: "s"}}, nil
}

func TestClient_ChatWithSearch(t *testing.T) {
	var req capturedRequest
	server := newTestServer(t, "answer", &req)
	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))

	searcher := &fakeSearcher{}
	res, err := client.ChatWithSearch(context.Background(), searcher,
		[]Message{User("What is the latest Go release")}, nil)
	if err != nil {
		t.Fatalf("ChatWithSearch() error: %v", err)
	}
	if res.Answer != "answer" {
		t.Errorf("Answer = %q", res.Answer)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "What is the latest Go" {
		t.Errorf("Unexpected queries: %v", searcher.queries)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("Expected system context message, got %+v", req.Messages)
	}
	if !strings.HasPrefix(req.Messages[0].Content, "You have access to the following web search results.") {
		t.Errorf("Unexpected system message: %q", req.Messages[0].Content)
	}
	if !strings.Contains(req.Messages[0].Content, "Result for What is the latest Go") {
		t.Error("Search results missing from context")
	}
}

func TestClient_ChatWithSearchLimitsQueries(t *testing.T) {
	server := newTestServer(t, "ok", nil)
	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))

	searcher := &fakeSearcher{err: fmt.Errorf("offline")}
	res, err := client.ChatWithSearch(context.Background(), searcher,
		[]Message{User("hello")}, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("ChatWithSearch() error: %v", err)
	}
	if len(searcher.queries) != 3 {
		t.Errorf("Expected 3 queries, got %d", len(searcher.queries))
	}
	if len(res.Results) != 0 {
		t.Errorf("Failed searches should yield no results")
	}
}

func TestClient_ChatWithSearchStreams(t *testing.T) {
	var req capturedRequest
	server := newStreamServer(t, []string{"Go ", "1.25"}, &req)
	client := New("test-key", server.URL+"/v1", "test-model", 0.7, 1000, WithMaxRetries(0))

	var streamed strings.Builder
	res, err := client.ChatWithSearch(context.Background(), &fakeSearcher{},
		[]Message{User("What is the latest Go release")}, nil,
		WithStreamHandler(func(s string) { streamed.WriteString(s) }))
	if err != nil {
		t.Fatalf("ChatWithSearch() error: %v", err)
	}
	if !req.Stream {
		t.Error("Expected a streaming request")
	}
	if res.Answer != "Go 1.25" || streamed.String() != "Go 1.25" {
		t.Errorf("Answer = %q, streamed = %q", res.Answer, streamed.String())
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Errorf("Expected search context before the question, got %+v", req.Messages)
	}
}

func TestStreamHandlerFrom(t *testing.T) {
	if StreamHandlerFrom(WithTemperature(0.1)) != nil {
		t.Error("Expected no handler")
	}
	called := false
	h := StreamHandlerFrom(WithModel("m"), WithStreamHandler(func(string) { called = true }))
	if h == nil {
		t.Fatal("Expected a handler")
	}
	h("x")
	if !called {
		t.Error("Handler was not the one passed in")
	}
}
