package enhance

import (
	"strings"
	"sync"
	"testing"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/websearch"
)

func newDefault() *Enhancer {
	return New(config.EnhancementConfig{Enabled: true, CustomEntries: config.DefaultCustomEntries()})
}

func TestMatch(t *testing.T) {
	e := newDefault()

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantFirst string
	}{
		{"single keyword", "Python generators", 2, "🐍 Python Official Documentation"},
		{"two keywords sorted", "OpenAI GPT pricing", 3, "🤖 GPT Models Overview"},
		{"no match", "weather in Oslo", 1, "🔧 Enhanced Search Result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Match(tt.query)
			if len(got) != tt.wantCount {
				t.Fatalf("Match(%q) returned %d entries, want %d", tt.query, len(got), tt.wantCount)
			}
			if got[0].Title != tt.wantFirst {
				t.Errorf("First entry = %q, want %q", got[0].Title, tt.wantFirst)
			}
		})
	}
}

func TestMatch_GeneralEntryNamesQuery(t *testing.T) {
	got := newDefault().Match("rust async")
	if !strings.Contains(got[0].Snippet, "'rust async'") {
		t.Errorf("General snippet should mention the query: %s", got[0].Snippet)
	}
}

func TestEnhance(t *testing.T) {
	cfg := config.EnhancementConfig{
		Enabled:       true,
		CustomEntries: config.DefaultCustomEntries(),
		TestEntry:     &config.Entry{Title: "🧪 MCP Test Entry", Link: "https://acme.example", Snippet: "Acme"},
	}
	e := New(cfg)

	original := []websearch.Result{{Title: "A", Link: "https://a"}, {Title: "B", Link: "https://b"}}
	got := e.Enhance("gpt", original)

	if len(got) != 4 {
		t.Fatalf("Expected 4 results, got %d", len(got))
	}
	if got[0].Title != "🤖 GPT Models Overview" {
		t.Errorf("Custom entry should come first: %+v", got[0])
	}
	if got[1].Title != "🧪 MCP Test Entry" {
		t.Errorf("Test entry should follow custom entries: %+v", got[1])
	}
	if got[2].Title != "A" || got[3].Title != "B" {
		t.Errorf("Original results should keep order: %+v", got[2:])
	}
	if len(original) != 2 {
		t.Error("Input must not be modified")
	}
}

func TestEnhance_Disabled(t *testing.T) {
	e := New(config.EnhancementConfig{Enabled: false, CustomEntries: config.DefaultCustomEntries()})
	in := []websearch.Result{{Title: "only"}}
	if got := e.Enhance("openai", in); len(got) != 1 {
		t.Errorf("Disabled enhancer should pass results through, got %d", len(got))
	}
}

func TestAdd(t *testing.T) {
	e := newDefault()

	if err := e.Add("", config.Entry{Title: "t", Link: "l"}); err == nil {
		t.Error("Empty keyword should fail")
	}
	if err := e.Add("go", config.Entry{Title: "t"}); err == nil {
		t.Error("Entry without link should fail")
	}
	if err := e.Add(" Go ", config.Entry{Title: "Go Dev", Link: "https://go.dev"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	got := e.Match("learn go")
	if len(got) != 1 || got[0].Title != "Go Dev" {
		t.Errorf("Added keyword not matched: %+v", got)
	}

	entries := e.Entries()
	entries["go"][0].Title = "mutated"
	if e.Entries()["go"][0].Title != "Go Dev" {
		t.Error("Entries() must return a copy")
	}
}

func TestConcurrentAddAndMatch(t *testing.T) {
	e := newDefault()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = e.Add("k", config.Entry{Title: "t", Link: "l"})
		}()
		go func() {
			defer wg.Done()
			_ = e.Match("k python")
		}()
	}
	wg.Wait()

	if n := len(e.Entries()["k"]); n != 20 {
		t.Errorf("Expected 20 entries, got %d", n)
	}
}
