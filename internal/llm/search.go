package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/websearch"
)

const (
	defaultSearchTemplate = "You have access to the following web search results. Use them to provide accurate and up-to-date information:\n\n{{.Results}}"

	maxSearchQueries  = 3
	resultsPerQuery   = 3
	queryWordLimit    = 5
	minQueryWordCount = 3
)

// searchKeywords mark a user message as needing fresh information.
var searchKeywords = []string{
	"latest", "recent", "current", "today", "news", "update",
	"what is", "how to", "where", "when", "who", "why",
	"search", "find", "look up", "information about",
}

// Searcher runs web searches on behalf of the chat client.
type Searcher interface {
	SearchWeb(ctx context.Context, query string, numResults int) ([]websearch.Result, error)
}

// SearchChat is the outcome of a search-augmented chat.
type SearchChat struct {
	Answer  string
	Queries []string
	Results []websearch.Result
}

// SetSearchContextTemplate replaces the system prompt that wraps search results.
func (c *Client) SetSearchContextTemplate(tmpl string) {
	if strings.TrimSpace(tmpl) != "" {
		c.searchTemplate = tmpl
	}
}

// ChatWithSearch searches first and hands the results to the model as context.
// When queries is empty they are derived from the user messages. With
// WithStreamHandler the answer is streamed as it arrives.
func (c *Client) ChatWithSearch(ctx context.Context, searcher Searcher, messages []Message, queries []string, opts ...CallOption) (*SearchChat, error) {
	if len(queries) == 0 {
		queries = ExtractSearchQueries(messages)
	}
	if len(queries) > maxSearchQueries {
		queries = queries[:maxSearchQueries]
	}

	var results []websearch.Result
	for _, q := range queries {
		found, err := searcher.SearchWeb(ctx, q, resultsPerQuery)
		if err != nil {
			logger.Warn("Search failed for query %q: %v", q, err)
			continue
		}
		results = append(results, found...)
	}

	enhanced := messages
	if len(results) > 0 {
		system, err := config.Render(c.searchTemplate, map[string]any{"Results": FormatSearchResults(results)})
		if err != nil {
			return nil, err
		}
		enhanced = append([]Message{System(system)}, messages...)
	}

	var answer string
	var err error
	if h := StreamHandlerFrom(opts...); h != nil {
		answer, err = c.ChatStream(ctx, enhanced, h, opts...)
	} else {
		answer, err = c.Chat(ctx, enhanced, opts...)
	}
	if err != nil {
		return nil, err
	}
	return &SearchChat{Answer: answer, Queries: queries, Results: results}, nil
}

// ExtractSearchQueries picks user messages that look like information requests
// and keeps their first five words.
func ExtractSearchQueries(messages []Message) []string {
	var queries []string
	for _, m := range messages {
		if m.Role != "user" {
			continue
		}
		content := strings.ToLower(m.Content)
		matched := false
		for _, kw := range searchKeywords {
			if strings.Contains(content, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		words := strings.Fields(m.Content)
		if len(words) < minQueryWordCount {
			continue
		}
		if len(words) > queryWordLimit {
			words = words[:queryWordLimit]
		}
		queries = append(queries, strings.Join(words, " "))
	}
	return queries
}

// FormatSearchResults renders results as a numbered list. Error entries are
// skipped but keep their position in the numbering.
func FormatSearchResults(results []websearch.Result) string {
	if len(results) == 0 {
		return "No search results found."
	}
	var b strings.Builder
	b.WriteString("Web Search Results:\n\n")
	for i, r := range results {
		if r.IsError() {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return b.String()
}
