package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/extract"
	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/store"
	"github.com/hession/llmseo/internal/websearch"
)

const (
	researchResults     = 10
	researchMaxSelected = 5
	summaryTemperature  = 0.3
)

// ExtractedSite is the content pulled from one selected site.
type ExtractedSite struct {
	URL               string `json:"url"`
	Title             string `json:"title"`
	Confidence        int    `json:"confidence"`
	Reason            string `json:"reason"`
	Content           string `json:"content"`
	ExtractionSuccess bool   `json:"extraction_success"`
}

// Report is the result of an intelligent search.
type Report struct {
	Query          string             `json:"query"`
	InitialResults []websearch.Result `json:"initial_results,omitempty"`
	SelectedSites  []Site             `json:"selected_sites,omitempty"`
	Extracted      []ExtractedSite    `json:"extracted_content,omitempty"`
	Summary        string             `json:"summary"`
	Success        bool               `json:"success"`
	Error          string             `json:"error,omitempty"`
}

// ExtractedCount returns the number of sites whose content was extracted.
func (r *Report) ExtractedCount() int {
	n := 0
	for _, e := range r.Extracted {
		if e.ExtractionSuccess {
			n++
		}
	}
	return n
}

// Researcher searches, lets the model pick sites, reads them and summarizes.
type Researcher struct {
	chat     Chatter
	searcher llm.Searcher
	selector *SiteSelector
	fetcher  *extract.Fetcher
	opts     extract.Options
	system   string
	template string
	store    store.Store
}

// NewResearcher creates a researcher. st may be nil.
func NewResearcher(chat Chatter, searcher llm.Searcher, fetcher *extract.Fetcher, prompts config.AgentPrompts, opts extract.Options, st store.Store) *Researcher {
	return &Researcher{
		chat:     chat,
		searcher: searcher,
		selector: newResearchSelector(chat, prompts),
		fetcher:  fetcher,
		opts:     opts,
		system:   prompts.ResearchSummarySystem,
		template: prompts.ResearchSummary,
		store:    st,
	}
}

// Research runs the whole pipeline. Failures are reported in the Report.
func (r *Researcher) Research(ctx context.Context, query string, maxSites int) *Report {
	logger.Info("Starting intelligent search for %q", query)
	runID := r.startRun(query)
	report := r.research(ctx, query, maxSites)
	r.finishRun(runID, report)
	return report
}

func (r *Researcher) research(ctx context.Context, query string, maxSites int) *Report {
	results, err := r.searcher.SearchWeb(ctx, query, researchResults)
	if err != nil {
		logger.Warn("Search failed: %v", err)
	}
	if len(results) == 0 {
		return &Report{
			Query:   query,
			Error:   "No initial search results found",
			Summary: "Unable to perform search due to no results.",
		}
	}

	sel := r.selector.Select(ctx, query, results, researchMaxSelected)
	sites := sel.SelectedSites
	if len(sites) == 0 {
		return &Report{
			Query:          query,
			InitialResults: results,
			Error:          "No sites selected for content extraction",
			Summary:        "Unable to select sites for deeper analysis.",
		}
	}
	if maxSites > 0 && len(sites) > maxSites {
		sites = sites[:maxSites]
	}

	extracted := r.extractAll(ctx, sites)
	return &Report{
		Query:          query,
		InitialResults: results,
		SelectedSites:  sites,
		Extracted:      extracted,
		Summary:        r.summarize(ctx, query, extracted),
		Success:        true,
	}
}

func (r *Researcher) extractAll(ctx context.Context, sites []Site) []ExtractedSite {
	out := make([]ExtractedSite, 0, len(sites))
	for i, site := range sites {
		logger.Info("%d. Extracting from: %s (confidence: %d)", i+1, site.Title, site.Confidence)
		item := ExtractedSite{
			URL:        site.URL,
			Title:      site.Title,
			Confidence: site.Confidence,
			Reason:     site.Reason,
		}

		content, err := r.extract(ctx, site.URL)
		if err != nil {
			logger.Warn("Error extracting content from %s: %v", site.URL, err)
			item.Content = fmt.Sprintf("Failed to extract content: %v", err)
		} else {
			item.Content = content
			item.ExtractionSuccess = true
		}
		out = append(out, item)
	}
	return out
}

func (r *Researcher) extract(ctx context.Context, rawURL string) (string, error) {
	if r.fetcher == nil {
		return "", errors.New("no fetcher configured")
	}
	page, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	content := extract.MainContent(page, r.opts)
	if content == "" {
		return "", errors.New("no content found")
	}
	return content, nil
}

func formatExtracted(items []ExtractedSite) string {
	var b strings.Builder
	for i, e := range items {
		fmt.Fprintf(&b, "Source %d: %s\n", i+1, orDefault(e.Title, "Unknown Title"))
		fmt.Fprintf(&b, "URL: %s\n", orDefault(e.URL, "Unknown URL"))
		fmt.Fprintf(&b, "Confidence: %d/10\n", e.Confidence)
		fmt.Fprintf(&b, "Reason for selection: %s\n", orDefault(e.Reason, "No reason provided"))
		fmt.Fprintf(&b, "Content:\n%s\n", orDefault(e.Content, "No content extracted"))
		b.WriteString(strings.Repeat("-", 80) + "\n\n")
	}
	return b.String()
}

func (r *Researcher) summarize(ctx context.Context, query string, items []ExtractedSite) string {
	prompt, err := config.Render(r.template, map[string]any{
		"Query":   query,
		"Content": formatExtracted(items),
	})
	if err != nil {
		return fmt.Sprintf("Failed to create summary: %v", err)
	}
	summary, err := r.chat.Chat(ctx, []llm.Message{
		llm.System(r.system),
		llm.User(prompt),
	}, llm.WithTemperature(summaryTemperature))
	if err != nil {
		logger.Warn("Summary creation failed: %v", err)
		return fmt.Sprintf("Failed to create summary: %v", err)
	}
	return summary
}

func (r *Researcher) startRun(query string) string {
	if r.store == nil {
		return ""
	}
	id, err := r.store.CreateRun(store.KindResearch, query)
	if err != nil {
		logger.Warn("Failed to record run: %v", err)
		return ""
	}
	return id
}

func (r *Researcher) finishRun(runID string, report *Report) {
	if r.store == nil || runID == "" {
		return
	}
	status, detail := store.StatusFinished, fmt.Sprintf("%d of %d sites extracted", report.ExtractedCount(), len(report.SelectedSites))
	if !report.Success {
		status, detail = store.StatusFailed, report.Error
	}
	if err := r.store.FinishRun(runID, status, detail); err != nil {
		logger.Warn("Failed to finish run: %v", err)
	}
}
