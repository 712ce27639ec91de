package agent

import (
	"context"
	"fmt"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/websearch"
)

const snippetTemperature = 0.7

// ProposedEntry is the rewritten test entry.
type ProposedEntry struct {
	Title           string `json:"title"`
	Snippet         string `json:"snippet"`
	Link            string `json:"link"`
	ReasonForChange string `json:"reason_for_change"`
}

// SnippetProposal is the outcome of one optimization attempt.
type SnippetProposal struct {
	NewEntry    *ProposedEntry `json:"new_entry"`
	RawResponse string         `json:"raw_llm_response,omitempty"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
}

// SnippetOptimizer rewrites the test entry so the selector is more likely to pick it.
type SnippetOptimizer struct {
	chat     Chatter
	system   string
	template string
}

func NewSnippetOptimizer(chat Chatter, prompts config.AgentPrompts) *SnippetOptimizer {
	return &SnippetOptimizer{
		chat:     chat,
		system:   prompts.SnippetOptimizerSystem,
		template: prompts.SnippetOptimizer,
	}
}

// Optimize proposes a new title, snippet and link grounded in companyInfo.
func (o *SnippetOptimizer) Optimize(ctx context.Context, query string, results []websearch.Result, selection *Selection, entryIndex int, companyInfo string) *SnippetProposal {
	if entryIndex < 0 || entryIndex >= len(results) {
		return &SnippetProposal{Error: fmt.Sprintf("entry index %d out of range", entryIndex)}
	}

	var sites []Site
	if selection != nil {
		sites = selection.SelectedSites
	}

	prompt, err := config.Render(o.template, map[string]any{
		"Query":       query,
		"Results":     formatIndexed(results),
		"Selection":   formatSelection(sites),
		"EntryIndex":  entryIndex,
		"CompanyInfo": companyInfo,
	})
	if err != nil {
		return &SnippetProposal{Error: err.Error()}
	}
	logger.Debug("Snippet optimization prompt:\n%s", prompt)

	raw, err := o.chat.Chat(ctx, []llm.Message{
		llm.System(o.system),
		llm.User(prompt),
	}, llm.WithTemperature(snippetTemperature))
	if err != nil {
		logger.Warn("Snippet optimization failed: %v", err)
		return &SnippetProposal{Error: err.Error()}
	}

	var entry ProposedEntry
	if err := parseJSON(raw, &entry); err != nil {
		logger.Warn("Snippet optimization failed: %v", err)
		return &SnippetProposal{RawResponse: raw, Error: err.Error()}
	}
	return &SnippetProposal{NewEntry: &entry, RawResponse: raw, Success: true}
}

// Apply replaces the entry's fields with the non-empty fields of the proposal.
func (p *ProposedEntry) Apply(r websearch.Result) websearch.Result {
	if p == nil {
		return r
	}
	if p.Title != "" {
		r.Title = p.Title
	}
	if p.Snippet != "" {
		r.Snippet = p.Snippet
	}
	if p.Link != "" {
		r.Link = p.Link
	}
	return r
}
