// Package agent chains LLM calls that select sites from search results,
// rewrite a test entry until it is selected, and propose website copy.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/websearch"
)

// ErrEntryNotFound is returned when the search yields no entry to optimize.
var ErrEntryNotFound = errors.New("test entry not found in search results")

// Chatter is the LLM surface the agents need. *llm.Client satisfies it.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error)
}

// Site is one website chosen by a selector.
type Site struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	Confidence      int    `json:"confidence"`
	Reason          string `json:"reason"`
	ExpectedContent string `json:"expected_content"`
	OriginalIndex   int    `json:"original_index"`
	Snippet         string `json:"snippet,omitempty"`
}

var codeFence = regexp.MustCompile("(?is)^```(?:json)?\\s*([\\s\\S]*?)\\s*```$")

// cleanJSON strips markdown code fences and stray backticks around a reply.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return strings.Trim(s, "`\n ")
}

// parseJSON decodes an LLM reply, repairing it once if it is not valid JSON.
func parseJSON(raw string, v any) error {
	s := cleanJSON(raw)
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(s)
	if repairErr != nil {
		return fmt.Errorf("JSON parsing failed: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("JSON parsing failed: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// formatNumbered lists results 1-based, skipping error entries but keeping their number.
func formatNumbered(results []websearch.Result) string {
	var b strings.Builder
	for i, r := range results {
		if r.IsError() {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, orDefault(r.Title, "No title"))
		fmt.Fprintf(&b, "   URL: %s\n", orDefault(r.Link, "No link"))
		fmt.Fprintf(&b, "   Snippet: %s\n\n", orDefault(r.Snippet, "No snippet"))
	}
	return b.String()
}

// formatIndexed lists results as [i], 0-based.
func formatIndexed(results []websearch.Result) string {
	var b strings.Builder
	for i, r := range results {
		if r.IsError() {
			continue
		}
		fmt.Fprintf(&b, "[%d] %s\n   URL: %s\n   Snippet: %s\n\n", i,
			orDefault(r.Title, "No title"), orDefault(r.Link, "No link"), orDefault(r.Snippet, "No snippet"))
	}
	return b.String()
}

func formatSelection(sites []Site) string {
	var b strings.Builder
	for i, s := range sites {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   Confidence: %d/10\n   Reason: %s\n\n", i+1,
			orDefault(s.Title, "No title"), orDefault(s.URL, "No url"), s.Confidence, orDefault(s.Reason, "No reason"))
	}
	return b.String()
}

// toInt reads a number the model may have written as a string.
func toInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

func toString(v any, def string) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return def
	default:
		return fmt.Sprint(s)
	}
}
