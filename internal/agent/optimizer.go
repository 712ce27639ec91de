package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/extract"
	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/store"
	"github.com/hession/llmseo/internal/websearch"
)

// RoundReport describes one select/optimize iteration.
type RoundReport struct {
	Round     int              `json:"round"`
	Entry     websearch.Result `json:"entry"`
	Selected  bool             `json:"selected"`
	Selection *Selection       `json:"selection"`
	Proposal  *SnippetProposal `json:"proposal,omitempty"`
}

// Outcome is the result of an optimization run.
type Outcome struct {
	RunID         string           `json:"run_id,omitempty"`
	Query         string           `json:"query"`
	EntryIndex    int              `json:"entry_index"`
	Rounds        []RoundReport    `json:"rounds"`
	SelectedRound int              `json:"selected_round"`
	FinalEntry    websearch.Result `json:"final_entry"`
	TargetSnippet string           `json:"target_snippet,omitempty"`
	ProposalPath  string           `json:"proposal_path,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Selected reports whether the entry was picked in some round.
func (o *Outcome) Selected() bool {
	return o.SelectedRound > 0
}

// Preparation lists the files written by Prepare.
type Preparation struct {
	WebsitePath     string
	CompanyInfoPath string
	CompanyInfo     string
}

// Optimizer runs the snippet optimization loop.
type Optimizer struct {
	cfg      config.OptimizeConfig
	searcher llm.Searcher
	selector *SiteSelector
	snippets *SnippetOptimizer
	website  *WebsiteOptimizer
	profiler *CompanyProfiler
	fetcher  *extract.Fetcher
	store    store.Store
	onRound  func(RoundReport)
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

// WithStore persists runs and rounds.
func WithStore(s store.Store) OptimizerOption {
	return func(o *Optimizer) {
		o.store = s
	}
}

// WithFetcher sets the fetcher used by Prepare.
func WithFetcher(f *extract.Fetcher) OptimizerOption {
	return func(o *Optimizer) {
		o.fetcher = f
	}
}

// WithRoundHandler is called after every round.
func WithRoundHandler(fn func(RoundReport)) OptimizerOption {
	return func(o *Optimizer) {
		o.onRound = fn
	}
}

func NewOptimizer(chat Chatter, searcher llm.Searcher, prompts config.AgentPrompts, cfg config.OptimizeConfig, opts ...OptimizerOption) *Optimizer {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 5
	}
	if cfg.MaxSites <= 0 {
		cfg.MaxSites = 3
	}
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = 10
	}
	o := &Optimizer{
		cfg:      cfg,
		searcher: searcher,
		selector: NewSiteSelector(chat, prompts),
		snippets: NewSnippetOptimizer(chat, prompts),
		website:  NewWebsiteOptimizer(chat, prompts),
		profiler: NewCompanyProfiler(chat, prompts),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Optimizer) path(name string) string {
	if filepath.IsAbs(name) || o.cfg.WorkDir == "" {
		return name
	}
	return filepath.Join(o.cfg.WorkDir, name)
}

// Prepare downloads the company site and writes its markdown profile.
func (o *Optimizer) Prepare(ctx context.Context, rawURL string) (*Preparation, error) {
	if o.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}

	logger.Info("Downloading website HTML from %s", rawURL)
	page, err := o.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	prep := &Preparation{
		WebsitePath:     o.path(o.cfg.WebsiteFile),
		CompanyInfoPath: o.path(o.cfg.CompanyInfoFile),
	}
	if err := writeFile(prep.WebsitePath, page.Body); err != nil {
		return nil, err
	}

	md, err := o.profiler.Profile(ctx, page.Body)
	if err != nil {
		return nil, err
	}
	if err := writeFile(prep.CompanyInfoPath, []byte(md)); err != nil {
		return nil, err
	}
	prep.CompanyInfo = md
	logger.Info("Saved company info to %s", prep.CompanyInfoPath)
	return prep, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// locateEntry returns the index of the first title containing marker, else 0.
func locateEntry(results []websearch.Result, marker string) int {
	if marker == "" {
		return 0
	}
	for i, r := range results {
		if strings.Contains(r.Title, marker) {
			return i
		}
	}
	return 0
}

// matchSite finds the selected site referring to entry by index, title or URL.
func matchSite(sites []Site, index int, entry websearch.Result) (Site, bool) {
	for _, s := range sites {
		if s.OriginalIndex == index {
			return s, true
		}
	}
	for _, s := range sites {
		if entry.Title != "" && s.Title == entry.Title {
			return s, true
		}
	}
	for _, s := range sites {
		if entry.Link != "" && s.URL == entry.Link {
			return s, true
		}
	}
	return Site{}, false
}

// Run searches for query and rewrites the test entry until the selector picks it.
func (o *Optimizer) Run(ctx context.Context, query string) (*Outcome, error) {
	results, err := o.searcher.SearchWeb(ctx, query, o.cfg.SearchResults)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrEntryNotFound
	}
	// the loop mutates the entry in place
	results = append([]websearch.Result(nil), results...)

	idx := locateEntry(results, o.cfg.TestEntryMarker)
	out := &Outcome{Query: query, EntryIndex: idx}

	companyInfo, err := os.ReadFile(o.path(o.cfg.CompanyInfoFile))
	if err != nil {
		logger.Warn("Failed to read company info file: %v", err)
	}

	if o.store != nil {
		id, err := o.store.CreateRun(store.KindOptimize, query)
		if err != nil {
			logger.Warn("Failed to record run: %v", err)
		}
		out.RunID = id
	}

	for round := 1; round <= o.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			out.Error = err.Error()
			break
		}

		entry := results[idx]
		sel := o.selector.Select(ctx, query, results, o.cfg.MaxSites)
		site, selected := matchSite(sel.SelectedSites, idx, entry)
		report := RoundReport{Round: round, Entry: entry, Selected: selected, Selection: sel}

		if selected {
			logger.Info("Test entry selected in round %d", round)
			out.SelectedRound = round
			out.TargetSnippet = firstNonEmpty(site.Snippet, site.ExpectedContent, entry.Snippet)
			o.record(out, report)
			if err := o.finishSelected(ctx, out); err != nil {
				out.Error = err.Error()
			}
			break
		}

		proposal := o.snippets.Optimize(ctx, query, results, sel, idx, string(companyInfo))
		report.Proposal = proposal
		o.record(out, report)
		if !proposal.Success {
			out.Error = fmt.Sprintf("Optimization failed: %s", proposal.Error)
			break
		}
		results[idx] = proposal.NewEntry.Apply(entry)
	}

	out.FinalEntry = results[idx]
	o.finishRun(out)
	return out, nil
}

func (o *Optimizer) record(out *Outcome, report RoundReport) {
	out.Rounds = append(out.Rounds, report)
	if o.onRound != nil {
		o.onRound(report)
	}
	if o.store == nil || out.RunID == "" {
		return
	}
	if err := o.store.SaveRound(&store.Round{
		RunID:       out.RunID,
		Round:       report.Round,
		Selected:    report.Selected,
		Title:       report.Entry.Title,
		Snippet:     report.Entry.Snippet,
		Link:        report.Entry.Link,
		RawResponse: report.Selection.RawResponse,
	}); err != nil {
		logger.Warn("Failed to record round %d: %v", report.Round, err)
	}
}

// finishSelected writes the target snippet and, when the site was prepared, the proposal.
func (o *Optimizer) finishSelected(ctx context.Context, out *Outcome) error {
	if err := writeFile(o.path(o.cfg.TargetSnippetFile), []byte(out.TargetSnippet)); err != nil {
		return err
	}

	html, err := os.ReadFile(o.path(o.cfg.WebsiteFile))
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("%s not found, skipping website optimization", o.cfg.WebsiteFile)
			return nil
		}
		return err
	}

	answer, err := o.website.Propose(ctx, string(html), out.TargetSnippet)
	if err != nil {
		return err
	}
	path := o.path(o.cfg.ProposalFile)
	if err := WriteProposal(path, answer, out.TargetSnippet); err != nil {
		return err
	}
	out.ProposalPath = path
	return nil
}

func (o *Optimizer) finishRun(out *Outcome) {
	if o.store == nil || out.RunID == "" {
		return
	}
	status := store.StatusFinished
	detail := fmt.Sprintf("not selected after %d rounds", o.cfg.MaxRounds)
	switch {
	case out.Selected():
		status = store.StatusSelected
		detail = fmt.Sprintf("selected in round %d", out.SelectedRound)
	case out.Error != "":
		status = store.StatusFailed
		detail = out.Error
	}
	if err := o.store.FinishRun(out.RunID, status, detail); err != nil {
		logger.Warn("Failed to finish run: %v", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
