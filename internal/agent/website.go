package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/extract"
	"github.com/hession/llmseo/internal/llm"
)

const (
	websiteTemperature = 0.3
	companyTemperature = 0.2
	proposalHeader     = "# Proposed Website Content Changes\n\n"
)

// WebsiteOptimizer proposes copy changes that steer search snippets toward a target.
type WebsiteOptimizer struct {
	chat     Chatter
	template string
}

func NewWebsiteOptimizer(chat Chatter, prompts config.AgentPrompts) *WebsiteOptimizer {
	return &WebsiteOptimizer{chat: chat, template: prompts.WebsiteOptimizer}
}

// Propose returns the model's markdown proposal for html. The page's current
// title, meta description and first paragraph are given to the model next to the raw HTML.
func (w *WebsiteOptimizer) Propose(ctx context.Context, html, targetSnippet string) (string, error) {
	prompt, err := config.Render(w.template, map[string]any{
		"HTML":    html,
		"Current": extract.Summarize([]byte(html)),
		"Target":  strings.TrimSpace(targetSnippet),
	})
	if err != nil {
		return "", err
	}
	answer, err := w.chat.Chat(ctx, []llm.Message{llm.User(prompt)}, llm.WithTemperature(websiteTemperature))
	if err != nil {
		return "", fmt.Errorf("website optimization failed: %w", err)
	}
	return answer, nil
}

// WriteProposal saves the proposal and, when present, the optimal snippet.
func WriteProposal(path, answer, snippet string) error {
	var b strings.Builder
	b.WriteString(proposalHeader)
	b.WriteString(strings.TrimSpace(answer) + "\n")
	if s := strings.TrimSpace(snippet); s != "" {
		b.WriteString("\n---\n\n# Optimal Snippet\n\n")
		b.WriteString(s + "\n")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create proposal directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write proposal: %w", err)
	}
	return nil
}

// CompanyProfiler turns a company homepage into a markdown profile.
type CompanyProfiler struct {
	chat     Chatter
	template string
}

func NewCompanyProfiler(chat Chatter, prompts config.AgentPrompts) *CompanyProfiler {
	return &CompanyProfiler{chat: chat, template: prompts.CompanyInfo}
}

// Profile summarizes the visible text of html.
func (c *CompanyProfiler) Profile(ctx context.Context, html []byte) (string, error) {
	text, err := extract.CleanText(html)
	if err != nil {
		return "", err
	}
	prompt, err := config.Render(c.template, map[string]any{"Text": text})
	if err != nil {
		return "", err
	}
	md, err := c.chat.Chat(ctx, []llm.Message{llm.User(prompt)}, llm.WithTemperature(companyTemperature))
	if err != nil {
		return "", fmt.Errorf("company profile failed: %w", err)
	}
	return md, nil
}
