package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hession/llmseo/internal/config"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, DefaultLimit},
		{0, DefaultLimit},
		{1, 1},
		{10, 10},
		{11, 10},
		{100, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			if got := ClampLimit(tt.in); got != tt.want {
				t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultJSON(t *testing.T) {
	ok, err := json.Marshal(Result{Title: "T", Link: "https://a", Snippet: "S"})
	if err != nil {
		t.Fatal(err)
	}
	if string(ok) != `{"title":"T","link":"https://a","snippet":"S"}` {
		t.Errorf("Unexpected result encoding: %s", ok)
	}

	bad, err := json.Marshal(ErrorResults("boom"))
	if err != nil {
		t.Fatal(err)
	}
	if string(bad) != `[{"error":"boom"}]` {
		t.Errorf("Unexpected error encoding: %s", bad)
	}

	var decoded []Result
	if err := json.Unmarshal(bad, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || !decoded[0].IsError() {
		t.Errorf("Error entry not decoded: %+v", decoded)
	}
}

func TestGoogleProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customsearch/v1" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "api-key" {
			t.Errorf("Expected key param, got %q", q.Get("key"))
		}
		if q.Get("cx") != "cse-id" {
			t.Errorf("Expected cx param, got %q", q.Get("cx"))
		}
		if q.Get("q") != "golang" {
			t.Errorf("Expected q=golang, got %q", q.Get("q"))
		}
		if q.Get("num") != "10" {
			t.Errorf("Expected num clamped to 10, got %q", q.Get("num"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[
			{"title":"The Go Programming Language","link":"https://go.dev","snippet":"Go is an open source language."},
			{"title":"Go wiki","link":"https://go.dev/wiki","snippet":"Community wiki."}
		]}`)
	}))
	defer server.Close()

	p := NewGoogleProvider("api-key", "cse-id", server.URL, "test", 5*time.Second)
	resp, err := p.Search(context.Background(), "golang", 25)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if resp.Provider != "google" {
		t.Errorf("Provider = %s", resp.Provider)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Link != "https://go.dev" {
		t.Errorf("Unexpected first link %s", resp.Results[0].Link)
	}
}

func TestGoogleProvider_NoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"searchInformation":{"totalResults":"0"}}`)
	}))
	defer server.Close()

	p := NewGoogleProvider("k", "cx", server.URL, "", time.Second)
	resp, err := p.Search(context.Background(), "nothing", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("Expected no results, got %d", len(resp.Results))
	}
}

func TestGoogleProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key."}}`)
	}))
	defer server.Close()

	p := NewGoogleProvider("bad", "cx", server.URL, "", time.Second)
	_, err := p.Search(context.Background(), "q", 5)
	if err == nil {
		t.Fatal("Expected error")
	}
	got := Describe(err)
	if got != "Google API Error: API key not valid. Please pass a valid API key." {
		t.Errorf("Describe() = %q", got)
	}
}

func TestGoogleProvider_MissingCredentials(t *testing.T) {
	p := NewGoogleProvider("", "cx", "", "", time.Second)
	_, err := p.Search(context.Background(), "q", 5)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Expected ErrMissingCredentials, got %v", err)
	}
	if Describe(err) != "Server configuration error: API keys missing." {
		t.Errorf("Describe() = %q", Describe(err))
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		prefix string
	}{
		{"status", &StatusError{Code: 502}, "HTTP error during search:"},
		{"timeout", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), "Search request timed out:"},
		{"decode", &DecodeError{Err: errors.New("bad json")}, "Failed to decode API response:"},
		{"other", errors.New("weird"), "Unexpected search request error:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("Describe() = %q, want prefix %q", got, tt.prefix)
			}
		})
	}

	if Describe(nil) != "" {
		t.Error("Describe(nil) should be empty")
	}
}

func TestDescribe_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	p := NewSearXNGProvider(addr, "", "", time.Second)
	_, err := p.Search(context.Background(), "q", 3)
	if err == nil {
		t.Fatal("Expected connection error")
	}
	if got := Describe(err); !strings.HasPrefix(got, "Network connection error during search:") {
		t.Errorf("Describe() = %q", got)
	}
}

func TestDuckDuckGoProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("Expected format=json")
		}
		fmt.Fprint(w, `{
			"Heading":"Go","AbstractText":"Go is a language","AbstractURL":"https://go.dev",
			"RelatedTopics":[
				{"Text":"Go wiki","FirstURL":"https://go.dev/wiki"},
				{"Topics":[{"Text":"Nested","FirstURL":"https://nested.example"}]},
				{"Text":"Duplicate","FirstURL":"https://go.dev"}
			]}`)
	}))
	defer server.Close()

	p := NewDuckDuckGoProvider(server.URL, "", time.Second)
	resp, err := p.Search(context.Background(), "go", 5)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("Expected 3 deduplicated results, got %d: %+v", len(resp.Results), resp.Results)
	}
	if resp.Results[0].Title != "Go" || resp.Results[0].Link != "https://go.dev" {
		t.Errorf("Unexpected abstract result: %+v", resp.Results[0])
	}
	if resp.Results[2].Link != "https://nested.example" {
		t.Errorf("Nested topic not walked: %+v", resp.Results[2])
	}
}

func TestSearXNGProvider_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewSearXNGProvider(server.URL, "", "", time.Second)
	_, err := p.Search(context.Background(), "q", 3)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected StatusError 429, got %v", err)
	}
}

func TestSearXNGProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "sx" {
			t.Errorf("Expected apikey param")
		}
		fmt.Fprint(w, `{"query":"q","results":[
			{"title":" A ","url":"https://a","content":"alpha"},
			{"title":"B","url":"https://b","content":"beta"}]}`)
	}))
	defer server.Close()

	p := NewSearXNGProvider(server.URL, "", "sx", time.Second)
	resp, err := p.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Title != "A" {
		t.Errorf("Unexpected results: %+v", resp.Results)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"", "google"},
		{"google", "google"},
		{"DDG", "duckduckgo"},
		{"searxng", "searxng"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p := New(config.SearchConfig{Provider: tt.provider, BaseURL: "http://localhost:1"})
			if p.Name() != tt.want {
				t.Errorf("New(%q).Name() = %s, want %s", tt.provider, p.Name(), tt.want)
			}
		})
	}
}
