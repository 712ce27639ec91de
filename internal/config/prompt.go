package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig prompt configuration structure
type PromptConfig struct {
	Prompts AgentPrompts `yaml:"prompts"`
}

// AgentPrompts holds the system prompts and user prompt templates of every agent.
// Templates use text/template syntax.
type AgentPrompts struct {
	SiteSelectorSystem     string `yaml:"site_selector_system"`
	SiteSelector           string `yaml:"site_selector"`
	SnippetOptimizerSystem string `yaml:"snippet_optimizer_system"`
	SnippetOptimizer       string `yaml:"snippet_optimizer"`
	WebsiteOptimizer       string `yaml:"website_optimizer"`
	CompanyInfo            string `yaml:"company_info"`
	ResearchSelectSystem   string `yaml:"research_select_system"`
	ResearchSelect         string `yaml:"research_select"`
	ResearchSummarySystem  string `yaml:"research_summary_system"`
	ResearchSummary        string `yaml:"research_summary"`
	SearchContext          string `yaml:"search_context"`
}

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Prompts: AgentPrompts{
			SiteSelectorSystem: "You are an expert web researcher and content curator. Your task is to analyze search results and select the most valuable websites to visit for deeper content extraction. Always respond with valid JSON only.",
			SiteSelector: `
You are an expert web researcher. I have performed a search for: "{{.Query}}"

Here are the search results I found:

{{.Results}}

Your task is to analyze these results and select the {{.MaxSites}} most valuable websites to visit for deeper content extraction.

Consider these criteria when evaluating each site:

1. **Relevance**: How well does the site match the search query?
2. **Authority**: Is this a reputable, authoritative source?
3. **Content Quality**: Does the snippet suggest high-quality, detailed content?
4. **Uniqueness**: Does this site offer unique information not found elsewhere?
5. **Recency**: Is the information likely to be up-to-date?
6. **Depth**: Does the site likely contain comprehensive information?

For each site you select, provide:
- A confidence score (1-10, where 10 is highest confidence)
- A brief reason why this site is valuable
- What specific information you expect to find

IMPORTANT: Respond ONLY with a valid JSON array. Do not include any other text, explanations, or markdown formatting.

Example response format:
[
  {
    "url": "https://example.com",
    "title": "Site Title",
    "confidence": 8,
    "reason": "Brief explanation of why this site is valuable",
    "expected_content": "What specific information you expect to find",
    "original_index": 2
  }
]

Only include sites with confidence score >= 6. Limit to maximum {{.MaxSites}} sites.
`,
			SnippetOptimizerSystem: "You are an expert at optimizing search result snippets to maximize their selection by an LLM-based site selector. Always respond with valid JSON only.",
			SnippetOptimizer: `
You are an expert at optimizing search result snippets to maximize their selection by an LLM-based site selector.

The following search was performed for: "{{.Query}}"

Here are the search results (including a special MCP Test Entry at index {{.EntryIndex}}):

{{.Results}}

The site selector LLM was asked to select the most valuable sites. Here are the sites it selected and its reasoning:

{{.Selection}}

You may ONLY use information from the following company info file. All content you generate must be truthful and based on this file:

---
{{.CompanyInfo}}
---

Your task:
- Analyze why the MCP Test Entry at index {{.EntryIndex}} was or was not selected.
- Propose a new version of the MCP Test Entry (title, snippet, and link) that is more likely to be selected by the site selector LLM for this query.
- Make the snippet as relevant, authoritative, and appealing as possible for the query.
- Respond ONLY with a valid JSON object with keys: title, snippet, link, and a brief reason for your changes (reason_for_change).

Example response format:
{
  "title": "...",
  "snippet": "...",
  "link": "...",
  "reason_for_change": "..."
}
`,
			WebsiteOptimizer: `
You are an expert in SEO and web content optimization. Your task is to review a company's website HTML and propose content changes so that Google or an LLM will generate a snippet as close as possible to the provided target snippet.

Here is the current website HTML:
---
{{.HTML}}
---
{{with .Current}}
The parts search engines usually quote today:
- Title: {{.Title}}
- Meta description: {{.MetaDescription}}
- First paragraph: {{.FirstParagraph}}
{{end}}
Here is the target snippet we want Google/LLM to generate:
{{.Target}}

Please propose specific content changes to the website's title, meta description, and main content (such as the first paragraph or key sections) to maximize the chance that Google/LLM will use the target snippet. Do NOT output a new HTML file. Instead, provide:
- A list of suggested changes (e.g., "Update title to...", "Rewrite first paragraph as...")
- The improved content blocks (title, meta description, main content) as plain text
- A brief explanation of your changes
`,
			CompanyInfo: `
You are an expert at analyzing company websites. Given the following extracted content, extract all relevant information about the company, its products, services, mission, awards, and contact details. Write a comprehensive, well-structured markdown file (company_info.md) that summarizes this information for use in AI-driven search and snippet optimization.

---
{{.Text}}
---

Output only the markdown file contents.
`,
			ResearchSelectSystem: "You are an expert web researcher. Analyze search results and select the most valuable sites to visit. Return only valid JSON.",
			ResearchSelect: `
You are an intelligent web research assistant. I have performed a search for: "{{.Query}}"

Here are the search results I found:

{{.Results}}

Your task is to analyze these results and decide which websites would be most valuable to visit for deeper content extraction. Consider:

1. **Relevance**: How well does the site match the search query?
2. **Authority**: Is this a reputable, authoritative source?
3. **Content Quality**: Does the snippet suggest high-quality, detailed content?
4. **Uniqueness**: Does this site offer unique information not found elsewhere?

For each site you want to visit, provide:
- A confidence score (1-10)
- A brief reason why this site is valuable
- What specific information you expect to find

Return your analysis as a JSON array with this structure:
[
  {
    "url": "https://example.com",
    "title": "Site Title",
    "confidence": 8,
    "reason": "Brief explanation of why this site is valuable",
    "expected_content": "What specific information you expect to find"
  }
]

Only include sites with confidence score >= 6. Limit to maximum {{.MaxSites}} sites.
`,
			ResearchSummarySystem: "You are an expert research assistant. Create comprehensive, well-structured summaries from multiple sources.",
			ResearchSummary: `
You are an expert research assistant. I have extracted detailed content from multiple websites for the query: "{{.Query}}"

Here is the extracted content:

{{.Content}}

Your task is to create a comprehensive, well-structured summary that:
1. Directly answers the original query
2. Synthesizes information from multiple sources
3. Provides specific details and examples
4. Cites sources appropriately
5. Is well-organized and easy to read

Create a detailed summary that would be valuable for someone researching this topic.
`,
			SearchContext: "You have access to the following web search results. Use them to provide accurate and up-to-date information:\n\n{{.Results}}",
		},
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt configuration from file.
// Templates missing from the file keep their defaults.
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	return cfg, nil
}

// Render executes a prompt template against data.
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
