package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hession/llmseo/internal/agent"
	"github.com/hession/llmseo/internal/extract"
	"github.com/hession/llmseo/internal/store"
	"github.com/hession/llmseo/internal/websearch"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printResults(w io.Writer, results []websearch.Result) {
	for i, r := range results {
		if r.IsError() {
			fmt.Fprintf(w, "%d. Error: %s\n\n", i+1, r.Error)
			continue
		}
		fmt.Fprintf(w, "%d. %s\n   %s\n   %s\n\n", i+1, r.Title, r.Link, r.Snippet)
	}
}

func printSites(w io.Writer, sites []agent.Site) {
	for i, s := range sites {
		fmt.Fprintf(w, "%d. %s (confidence %d/10)\n   %s\n   Reason: %s\n   Expected: %s\n\n",
			i+1, s.Title, s.Confidence, s.URL, s.Reason, s.ExpectedContent)
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search through the running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.searcher(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := s.SearchWeb(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "num", "n", 5, "number of results (1-10)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func newSelectCmd(a *app) *cobra.Command {
	var maxSites, limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "select <query>",
		Short: "Show which results the model would choose to read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chat, err := a.llmClient()
			if err != nil {
				return err
			}
			s, err := a.searcher(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			query := strings.Join(args, " ")
			results, err := s.SearchWeb(ctx, query, limit)
			if err != nil {
				return err
			}
			sel := agent.NewSiteSelector(chat, a.prompts.Prompts).Select(ctx, query, results, maxSites)
			patterns := agent.AnalyzePatterns(query, results, sel.SelectedSites)

			st := a.openStore()
			defer closeStore(st)
			recordSelection(st, query, sel)

			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, map[string]any{"selection": sel, "patterns": patterns})
			}
			if !sel.Success {
				fmt.Fprintf(w, "⚠️  Fell back to top results: %s\n\n", sel.Error)
			}
			printSites(w, sel.SelectedSites)
			fmt.Fprintf(w, "Selected %d of %d results (rate %.0f%%, average confidence %.1f)\n",
				patterns.SelectedCount, patterns.TotalResults, patterns.SelectionRate*100, patterns.AverageConfidence)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSites, "max-sites", 3, "maximum sites to select")
	cmd.Flags().IntVarP(&limit, "num", "n", 10, "number of search results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func recordSelection(st store.Store, query string, sel *agent.Selection) {
	if st == nil {
		return
	}
	id, err := st.CreateRun(store.KindSelect, query)
	if err != nil {
		return
	}
	status, detail := store.StatusFinished, fmt.Sprintf("%d sites selected", len(sel.SelectedSites))
	if !sel.Success {
		status, detail = store.StatusFailed, sel.Error
	}
	st.FinishRun(id, status, detail)
}

func newOptimizeCmd(a *app) *cobra.Command {
	var siteURL string
	var rounds int
	cmd := &cobra.Command{
		Use:   "optimize <query>",
		Short: "Rewrite the test entry until the model selects it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			chat, err := a.llmClient()
			if err != nil {
				return err
			}
			s, err := a.searcher(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			st := a.openStore()
			defer closeStore(st)

			if rounds > 0 {
				a.cfg.Optimize.MaxRounds = rounds
			}
			w := cmd.OutOrStdout()
			opt := a.optimizer(chat, s, st, func(r agent.RoundReport) {
				printRound(w, r)
			})

			if siteURL != "" {
				prep, err := opt.Prepare(ctx, siteURL)
				if err != nil {
					return fmt.Errorf("failed to prepare company files: %w", err)
				}
				fmt.Fprintf(w, "📄 Saved %s and %s\n\n", prep.WebsitePath, prep.CompanyInfoPath)
			}

			out, err := opt.Run(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printOutcome(w, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&siteURL, "url", "", "download this company site and profile it first")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "maximum optimization rounds (default from config)")
	return cmd
}

func printRound(w io.Writer, r agent.RoundReport) {
	fmt.Fprintf(w, "--- Round %d ---\n", r.Round)
	fmt.Fprintf(w, "Entry: %s\n       %s\n", r.Entry.Title, r.Entry.Snippet)
	if r.Selected {
		fmt.Fprintf(w, "✅ Selected\n\n")
		return
	}
	fmt.Fprintf(w, "❌ Not selected\n")
	if r.Proposal != nil && r.Proposal.NewEntry != nil {
		fmt.Fprintf(w, "Proposed: %s\nReason: %s\n", r.Proposal.NewEntry.Title, r.Proposal.NewEntry.ReasonForChange)
	}
	fmt.Fprintln(w)
}

func printOutcome(w io.Writer, out *agent.Outcome) {
	switch {
	case out.Selected():
		fmt.Fprintf(w, "🎉 Test entry selected in round %d\n", out.SelectedRound)
		fmt.Fprintf(w, "Target snippet: %s\n", out.TargetSnippet)
		if out.ProposalPath != "" {
			fmt.Fprintf(w, "Website proposal written to %s\n", out.ProposalPath)
		}
	case out.Error != "":
		fmt.Fprintf(w, "❌ %s\n", out.Error)
	default:
		fmt.Fprintf(w, "Test entry not selected after %d rounds\n", len(out.Rounds))
	}
	if out.Error != "" && out.Selected() {
		fmt.Fprintf(w, "⚠️  %s\n", out.Error)
	}
	fmt.Fprintf(w, "Final entry: %s\n  %s\n  %s\n", out.FinalEntry.Title, out.FinalEntry.Link, out.FinalEntry.Snippet)
	if out.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", out.RunID)
	}
}

func newResearchCmd(a *app) *cobra.Command {
	var maxSites int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "research <query>",
		Short: "Search, read the best sites and summarize",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			chat, err := a.llmClient()
			if err != nil {
				return err
			}
			s, err := a.searcher(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			st := a.openStore()
			defer closeStore(st)

			r := agent.NewResearcher(chat, s, a.fetcher(), a.prompts.Prompts, extractOptions(a.cfg.Extract), st)
			report := r.Research(ctx, strings.Join(args, " "), maxSites)

			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, report)
			}
			if !report.Success {
				fmt.Fprintf(w, "❌ %s\n%s\n", report.Error, report.Summary)
				return nil
			}
			printSites(w, report.SelectedSites)
			fmt.Fprintf(w, "Extracted %d of %d sites\n\n", report.ExtractedCount(), len(report.SelectedSites))
			fmt.Fprintf(w, "%s\n", report.Summary)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSites, "max-sites", 3, "maximum sites to read")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func newWebsiteCmd(a *app) *cobra.Command {
	var htmlPath, snippet string
	cmd := &cobra.Command{
		Use:   "website",
		Short: "Propose website copy changes for the target snippet",
		RunE: func(cmd *cobra.Command, args []string) error {
			chat, err := a.llmClient()
			if err != nil {
				return err
			}
			o := a.cfg.Optimize
			if htmlPath == "" {
				htmlPath = o.Path(o.WebsiteFile)
			}
			html, err := os.ReadFile(htmlPath)
			if err != nil {
				return fmt.Errorf("failed to read website HTML: %w", err)
			}
			if snippet == "" {
				data, err := os.ReadFile(o.Path(o.TargetSnippetFile))
				if err != nil {
					return fmt.Errorf("failed to read target snippet (run optimize first or pass --snippet): %w", err)
				}
				snippet = string(data)
			}

			printSummary(cmd.OutOrStdout(), extract.Summarize(html))
			answer, err := agent.NewWebsiteOptimizer(chat, a.prompts.Prompts).Propose(cmd.Context(), string(html), snippet)
			if err != nil {
				return err
			}
			path := o.Path(o.ProposalFile)
			if err := agent.WriteProposal(path, answer, snippet); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Proposal written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&htmlPath, "html", "", "website HTML file (default optimize.website_file)")
	cmd.Flags().StringVar(&snippet, "snippet", "", "target snippet (default optimize.target_snippet_file)")
	return cmd
}

func printSummary(w io.Writer, s extract.Summary) {
	fmt.Fprintln(w, "Current content:")
	if s.SiteName != "" {
		fmt.Fprintf(w, "  Site:             %s\n", s.SiteName)
	}
	fmt.Fprintf(w, "  Title:            %s\n", s.Title)
	fmt.Fprintf(w, "  Meta description: %s\n", s.MetaDescription)
	fmt.Fprintf(w, "  First paragraph:  %s\n\n", truncate(s.FirstParagraph, 200))
}

func newCompanyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "company <url>",
		Short: "Download a company site and write its markdown profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chat, err := a.llmClient()
			if err != nil {
				return err
			}
			opt := agent.NewOptimizer(chat, nil, a.prompts.Prompts, a.cfg.Optimize, agent.WithFetcher(a.fetcher()))
			prep, err := opt.Prepare(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "✅ Saved %s and %s\n\n", prep.WebsitePath, prep.CompanyInfoPath)
			fmt.Fprintln(w, prep.CompanyInfo)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs or show the rounds of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewSQLiteStore(a.cfg.Store.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				return printRun(w, st, args[0])
			}
			runs, err := st.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded yet")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%s  %s  %-8s  %-8s  %s  (%s)\n",
					r.CreatedAt.Format("2006-01-02 15:04"), r.ID, r.Kind, r.Status, r.Query, r.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}

func printRun(w io.Writer, st store.Store, id string) error {
	run, err := st.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	fmt.Fprintf(w, "Run %s (%s) %q: %s\n", run.ID, run.Kind, run.Query, run.Status)
	if run.Detail != "" {
		fmt.Fprintf(w, "  %s\n", run.Detail)
	}
	rounds, err := st.GetRounds(id)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		mark := "❌"
		if r.Selected {
			mark = "✅"
		}
		fmt.Fprintf(w, "\nRound %d %s\n  %s\n  %s\n  %s\n", r.Round, mark, r.Title, r.Link, r.Snippet)
	}
	return nil
}
