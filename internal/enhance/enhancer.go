// Package enhance injects configured entries into search results.
package enhance

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/websearch"
)

const (
	generalTitle = "🔧 Enhanced Search Result"
	generalLink  = "https://example.com/enhanced-search"
)

// Enhancer prepends keyword-matched entries to search results.
type Enhancer struct {
	mu        sync.RWMutex
	enabled   bool
	entries   map[string][]config.Entry
	testEntry *config.Entry
}

// New creates an enhancer from config. Entries are copied.
func New(cfg config.EnhancementConfig) *Enhancer {
	e := &Enhancer{
		enabled: cfg.Enabled,
		entries: copyEntries(cfg.CustomEntries),
	}
	if cfg.TestEntry != nil {
		te := *cfg.TestEntry
		e.testEntry = &te
	}
	return e
}

// Enabled reports whether results are enhanced.
func (e *Enhancer) Enabled() bool {
	return e.enabled
}

// Entries returns a copy of the keyword table.
func (e *Enhancer) Entries() map[string][]config.Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyEntries(e.entries)
}

// Add appends an entry under keyword. Keywords are matched lowercased.
func (e *Enhancer) Add(keyword string, entry config.Entry) error {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return fmt.Errorf("keyword cannot be empty")
	}
	if strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.Link) == "" {
		return fmt.Errorf("entry requires title and link")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[keyword] = append(e.entries[keyword], entry)
	return nil
}

// Match returns the entries whose keyword occurs in the query, or the general entry.
func (e *Enhancer) Match(query string) []websearch.Result {
	q := strings.ToLower(query)

	e.mu.RLock()
	keywords := make([]string, 0, len(e.entries))
	for k := range e.entries {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	var matched []websearch.Result
	for _, k := range keywords {
		if !strings.Contains(q, strings.ToLower(k)) {
			continue
		}
		for _, entry := range e.entries[k] {
			matched = append(matched, toResult(entry))
		}
	}
	e.mu.RUnlock()

	if len(matched) == 0 {
		matched = append(matched, websearch.Result{
			Title:   generalTitle,
			Link:    generalLink,
			Snippet: fmt.Sprintf("This is an enhanced search result for '%s'. Custom entries can be configured based on keywords.", query),
		})
	}
	return matched
}

// Enhance returns custom entries, then the test entry, then results.
// The input slice is not modified.
func (e *Enhancer) Enhance(query string, results []websearch.Result) []websearch.Result {
	if e == nil || !e.enabled {
		return results
	}

	custom := e.Match(query)
	out := make([]websearch.Result, 0, len(custom)+len(results)+1)
	out = append(out, custom...)
	if e.testEntry != nil {
		out = append(out, toResult(*e.testEntry))
	}
	out = append(out, results...)
	return out
}

func toResult(entry config.Entry) websearch.Result {
	return websearch.Result{Title: entry.Title, Link: entry.Link, Snippet: entry.Snippet}
}

func copyEntries(in map[string][]config.Entry) map[string][]config.Entry {
	out := make(map[string][]config.Entry, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = append([]config.Entry(nil), v...)
	}
	return out
}
