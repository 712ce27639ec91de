package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/websearch"
)

const (
	selectorTemperature = 0.3
	fallbackConfidence  = 7
	fallbackReason      = "Fallback selection due to LLM analysis failure"
	fallbackExpected    = "General information about the topic"
)

// Selection is the outcome of one site selection.
type Selection struct {
	SelectedSites []Site `json:"selected_sites"`
	RawResponse   string `json:"raw_llm_response,omitempty"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// SiteSelector asks the model which results are worth visiting.
type SiteSelector struct {
	chat     Chatter
	system   string
	template string

	// minConfidence drops sites below it; zero keeps everything
	minConfidence int
	// fallbackLimit caps the fallback selection; zero uses maxSites
	fallbackLimit int
}

// NewSiteSelector creates the selector used by the optimization loop.
func NewSiteSelector(chat Chatter, prompts config.AgentPrompts) *SiteSelector {
	return &SiteSelector{
		chat:     chat,
		system:   prompts.SiteSelectorSystem,
		template: prompts.SiteSelector,
	}
}

// newResearchSelector creates the stricter selector used by the researcher.
func newResearchSelector(chat Chatter, prompts config.AgentPrompts) *SiteSelector {
	return &SiteSelector{
		chat:          chat,
		system:        prompts.ResearchSelectSystem,
		template:      prompts.ResearchSelect,
		minConfidence: 6,
		fallbackLimit: 3,
	}
}

// Select never fails: model or parse errors produce a fallback selection.
func (s *SiteSelector) Select(ctx context.Context, query string, results []websearch.Result, maxSites int) *Selection {
	logger.Info("Site selector analyzing %d search results for %q", len(results), query)

	prompt, err := config.Render(s.template, map[string]any{
		"Query":    query,
		"Results":  formatNumbered(results),
		"MaxSites": maxSites,
	})
	if err != nil {
		return s.fallback(results, maxSites, "", fmt.Sprintf("Unexpected error: %v", err))
	}

	raw, err := s.chat.Chat(ctx, []llm.Message{
		llm.System(s.system),
		llm.User(prompt),
	}, llm.WithTemperature(selectorTemperature))
	if err != nil {
		logger.Warn("Site selection failed: %v", err)
		return s.fallback(results, maxSites, "", fmt.Sprintf("OpenAI API error: %v", err))
	}

	sites, err := parseSites(raw)
	if err != nil {
		logger.Warn("Failed to parse site selection: %v", err)
		return s.fallback(results, maxSites, raw, err.Error())
	}

	if s.minConfidence > 0 {
		kept := sites[:0]
		for _, site := range sites {
			if site.Confidence >= s.minConfidence {
				kept = append(kept, site)
			}
		}
		sites = kept
	}

	logger.Info("Selected %d sites", len(sites))
	return &Selection{SelectedSites: sites, RawResponse: raw, Success: true}
}

// parseSites validates the model's array. Entries without a url are dropped.
func parseSites(raw string) ([]Site, error) {
	var items []any
	if err := parseJSON(raw, &items); err != nil {
		var single map[string]any
		if parseJSON(raw, &single) == nil {
			return nil, errors.New("LLM response is not a list")
		}
		return nil, err
	}

	sites := make([]Site, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rawURL, ok := m["url"]
		if !ok {
			continue
		}
		sites = append(sites, Site{
			URL:             toString(rawURL, ""),
			Title:           toString(m["title"], "Unknown"),
			Confidence:      toInt(m["confidence"], 5),
			Reason:          toString(m["reason"], "No reason provided"),
			ExpectedContent: toString(m["expected_content"], "General information"),
			OriginalIndex:   toInt(m["original_index"], -1),
			Snippet:         toString(m["snippet"], ""),
		})
	}
	return sites, nil
}

func (s *SiteSelector) fallback(results []websearch.Result, maxSites int, raw, msg string) *Selection {
	limit := maxSites
	if s.fallbackLimit > 0 {
		limit = s.fallbackLimit
	}
	return &Selection{
		SelectedSites: FallbackSites(results, limit),
		RawResponse:   raw,
		Success:       false,
		Error:         msg,
	}
}

// FallbackSites picks the first limit non-error results.
func FallbackSites(results []websearch.Result, limit int) []Site {
	sites := []Site{}
	for i, r := range results {
		if len(sites) >= limit {
			break
		}
		if r.IsError() {
			continue
		}
		sites = append(sites, Site{
			URL:             r.Link,
			Title:           orDefault(r.Title, "Unknown"),
			Confidence:      fallbackConfidence,
			Reason:          fallbackReason,
			ExpectedContent: fallbackExpected,
			OriginalIndex:   i,
		})
	}
	return sites
}

var reasonPhrases = []string{"official", "authoritative", "comprehensive", "detailed", "latest", "recent", "expert", "reputable"}

// Patterns summarizes what the selector tends to pick.
type Patterns struct {
	Query                  string         `json:"query"`
	TotalResults           int            `json:"total_results"`
	SelectedCount          int            `json:"selected_count"`
	SelectionRate          float64        `json:"selection_rate"`
	AverageConfidence      float64        `json:"average_confidence"`
	ConfidenceDistribution map[int]int    `json:"confidence_distribution"`
	CommonReasons          map[string]int `json:"common_reasons"`
	SelectedIndices        []int          `json:"selected_indices"`
}

// AnalyzePatterns computes selection statistics for a query.
func AnalyzePatterns(query string, results []websearch.Result, sites []Site) Patterns {
	p := Patterns{
		Query:                  query,
		TotalResults:           len(results),
		SelectedCount:          len(sites),
		ConfidenceDistribution: map[int]int{},
		CommonReasons:          map[string]int{},
		SelectedIndices:        make([]int, 0, len(sites)),
	}
	if len(results) > 0 {
		p.SelectionRate = float64(len(sites)) / float64(len(results))
	}

	total := 0
	for _, site := range sites {
		total += site.Confidence
		p.ConfidenceDistribution[site.Confidence]++
		p.SelectedIndices = append(p.SelectedIndices, site.OriginalIndex)

		reason := strings.ToLower(site.Reason)
		for _, phrase := range reasonPhrases {
			if strings.Contains(reason, phrase) {
				p.CommonReasons[phrase]++
			}
		}
	}
	if len(sites) > 0 {
		p.AverageConfidence = float64(total) / float64(len(sites))
	}
	return p
}
