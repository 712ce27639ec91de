// Package cli implements the interactive client of the search proxy.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/hession/llmseo/internal/agent"
	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/mcpclient"
	"github.com/hession/llmseo/internal/trafficlog"
	"github.com/hession/llmseo/internal/websearch"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"

	defaultSearchResults = 5
	defaultResearchSites = 3
	snippetDisplayLen    = 200
)

// Client is the part of the MCP client the REPL needs.
type Client interface {
	SearchWeb(ctx context.Context, query string, numResults int) ([]websearch.Result, error)
	ListTools(ctx context.Context) ([]mcpclient.ToolInfo, error)
	Health(ctx context.Context) (*mcpclient.Health, error)
	Stats(ctx context.Context) (*trafficlog.Stats, error)
	ClearLogs(ctx context.Context) (string, error)
}

// SearchChatter answers chat messages with web search context.
type SearchChatter interface {
	ChatWithSearch(ctx context.Context, searcher llm.Searcher, messages []llm.Message, queries []string, opts ...llm.CallOption) (*llm.SearchChat, error)
}

// Selector picks sites from a result list.
type Selector interface {
	Select(ctx context.Context, query string, results []websearch.Result, maxSites int) *agent.Selection
}

// Researcher runs the search, read and summarize pipeline.
type Researcher interface {
	Research(ctx context.Context, query string, maxSites int) *agent.Report
}

// Session holds the conversation and the collaborators of one REPL.
type Session struct {
	client     Client
	chat       SearchChatter
	selector   Selector
	researcher Researcher
	out        io.Writer
	history    []llm.Message
}

// SessionOption configures a Session.
type SessionOption func(*Session)

func WithChat(c SearchChatter) SessionOption {
	return func(s *Session) { s.chat = c }
}

func WithSelector(sel Selector) SessionOption {
	return func(s *Session) { s.selector = sel }
}

func WithResearcher(r Researcher) SessionOption {
	return func(s *Session) { s.researcher = r }
}

// WithOutput redirects output, mainly for tests.
func WithOutput(w io.Writer) SessionOption {
	return func(s *Session) { s.out = w }
}

// NewSession creates a session talking to client.
func NewSession(client Client, opts ...SessionOption) *Session {
	s := &Session{client: client, out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the chat messages exchanged so far.
func (s *Session) History() []llm.Message {
	return append([]llm.Message(nil), s.history...)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Session) errorf(format string, args ...any) {
	s.printf("%s❌ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

// Run starts the interactive prompt and returns when the user exits.
func Run(ctx context.Context, s *Session, version string) error {
	printWelcome(s.out, version)

	exit := false
	p := prompt.New(
		func(line string) {
			if !s.Execute(ctx, line) {
				exit = true
			}
		},
		completer,
		prompt.OptionTitle("llmseo"),
		prompt.OptionPrefix("You: "),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			// the executor has already run for this line
			return breakline && exit
		}),
	)
	p.Run()
	return nil
}

func printWelcome(w io.Writer, version string) {
	fmt.Fprintf(w, "\n%s🔍 llmseo v%s%s - Interactive MCP search client\n", colorCyan, version, colorReset)
	fmt.Fprintf(w, "%sType /help for help, /exit to quit. Plain text is sent to chat.%s\n\n", colorGray, colorReset)
}

// Execute handles one line. It returns false when the session should end.
func (s *Session) Execute(ctx context.Context, line string) bool {
	in := ParseCommand(line)
	if in.Command == "" && in.Args == "" {
		return true
	}

	switch in.Command {
	case "", "/chat":
		s.chatTurn(ctx, in.Args)
	case "/search":
		s.search(ctx, in.Args, in.Limit)
	case "/select":
		s.selectSites(ctx, in.Args)
	case "/research":
		s.research(ctx, in.Args)
	case "/tools":
		s.listTools(ctx)
	case "/stats":
		s.stats(ctx)
	case "/clear-logs":
		s.clearLogs(ctx)
	case "/health":
		s.health(ctx)
	case "/history":
		s.printHistory()
	case "/clear":
		s.history = nil
		s.printf("%s✅ Conversation history cleared%s\n", colorGreen, colorReset)
	case "/help":
		printHelp(s.out)
	case "/exit":
		s.printf("%sGoodbye! 👋%s\n", colorCyan, colorReset)
		return false
	default:
		s.printf("%s❓ Unknown command: %s%s\n", colorYellow, in.Command, colorReset)
		s.printf("Type /help for available commands\n")
	}
	return true
}

func (s *Session) usage(name string) {
	if c, ok := lookup(name); ok {
		s.printf("%sUsage: %s%s\n", colorYellow, c.Usage, colorReset)
	}
}

func (s *Session) search(ctx context.Context, query string, limit int) {
	if query == "" {
		s.usage("/search")
		return
	}
	if limit <= 0 {
		limit = defaultSearchResults
	}
	s.printf("%s🔍 Searching for: %s%s\n", colorGray, query, colorReset)
	results, err := s.client.SearchWeb(ctx, query, limit)
	if err != nil {
		s.errorf("Search failed: %v", err)
		return
	}
	s.printResults(results)
}

func (s *Session) printResults(results []websearch.Result) {
	if len(results) == 0 {
		s.printf("%sNo results%s\n", colorYellow, colorReset)
		return
	}
	s.printf("\n%sFound %d results:%s\n\n", colorGreen, len(results), colorReset)
	for i, r := range results {
		if r.IsError() {
			s.printf("%d. %sError: %s%s\n\n", i+1, colorRed, r.Error, colorReset)
			continue
		}
		s.printf("%d. %s%s%s\n", i+1, colorBlue, r.Title, colorReset)
		s.printf("   %sURL: %s%s\n", colorGray, r.Link, colorReset)
		s.printf("   %s\n\n", truncateForDisplay(r.Snippet, snippetDisplayLen))
	}
}

func (s *Session) chatTurn(ctx context.Context, text string) {
	if text == "" {
		s.usage("/chat")
		return
	}
	if s.chat == nil {
		s.errorf("Chat is not configured (missing model API key)")
		return
	}

	messages := append(s.History(), llm.User(text))
	streaming := false
	onDelta := func(delta string) {
		if !streaming {
			s.printf("\n%sAssistant: %s", colorBlue, colorReset)
			streaming = true
		}
		s.printf("%s", delta)
	}

	res, err := s.chat.ChatWithSearch(ctx, s.client, messages, nil, llm.WithStreamHandler(onDelta))
	if streaming {
		s.printf("\n\n")
	}
	if err != nil {
		s.errorf("Chat failed: %v", err)
		return
	}
	if !streaming {
		s.printf("\n%sAssistant: %s%s\n\n", colorBlue, colorReset, res.Answer)
	}
	if len(res.Queries) > 0 {
		s.printf("%s🔍 Searched: %s%s\n\n", colorGray, strings.Join(res.Queries, "; "), colorReset)
	}
	s.history = append(messages, llm.Assistant(res.Answer))
}

func (s *Session) selectSites(ctx context.Context, query string) {
	if query == "" {
		s.usage("/select")
		return
	}
	if s.selector == nil {
		s.errorf("Site selection is not configured (missing model API key)")
		return
	}
	results, err := s.client.SearchWeb(ctx, query, 10)
	if err != nil {
		s.errorf("Search failed: %v", err)
		return
	}
	sel := s.selector.Select(ctx, query, results, defaultResearchSites)
	if !sel.Success {
		s.printf("%s⚠️  Selection fell back to top results: %s%s\n", colorYellow, sel.Error, colorReset)
	}
	s.printSites(sel.SelectedSites)
}

func (s *Session) printSites(sites []agent.Site) {
	if len(sites) == 0 {
		s.printf("%sNo sites selected%s\n", colorYellow, colorReset)
		return
	}
	for i, site := range sites {
		s.printf("%d. %s%s%s (confidence %d/10)\n", i+1, colorBlue, site.Title, colorReset, site.Confidence)
		s.printf("   %sURL: %s%s\n", colorGray, site.URL, colorReset)
		s.printf("   Reason: %s\n\n", truncateForDisplay(site.Reason, snippetDisplayLen))
	}
}

func (s *Session) research(ctx context.Context, query string) {
	if query == "" {
		s.usage("/research")
		return
	}
	if s.researcher == nil {
		s.errorf("Research is not configured (missing model API key)")
		return
	}
	s.printf("%s🔬 Researching: %s%s\n", colorGray, query, colorReset)
	report := s.researcher.Research(ctx, query, defaultResearchSites)
	if !report.Success {
		s.errorf("Research failed: %s", report.Error)
		if report.Summary != "" {
			s.printf("%s\n", report.Summary)
		}
		return
	}
	s.printSites(report.SelectedSites)
	s.printf("%sExtracted %d of %d sites%s\n\n", colorGray, report.ExtractedCount(), len(report.SelectedSites), colorReset)
	s.printf("%sSummary:%s\n%s\n\n", colorGreen, colorReset, report.Summary)
}

func (s *Session) listTools(ctx context.Context) {
	tools, err := s.client.ListTools(ctx)
	if err != nil {
		s.errorf("Failed to list tools: %v", err)
		return
	}
	s.printf("\n%sAvailable Tools:%s\n", colorYellow, colorReset)
	for _, t := range tools {
		s.printf("  • %-12s - %s\n", t.Name, t.Description)
	}
	s.printf("\n")
}

func (s *Session) stats(ctx context.Context) {
	st, err := s.client.Stats(ctx)
	if err != nil {
		s.errorf("Failed to get stats: %v", err)
		return
	}
	s.printf("\n%sTraffic Log Statistics:%s\n", colorYellow, colorReset)
	s.printf("  Requests:  %d\n", st.RequestsLogged)
	s.printf("  Responses: %d\n", st.ResponsesLogged)
	s.printf("  Errors:    %d\n", st.ErrorsLogged)
	s.printf("  Directory: %s\n\n", st.LogDirectory)
}

func (s *Session) clearLogs(ctx context.Context) {
	msg, err := s.client.ClearLogs(ctx)
	if err != nil {
		s.errorf("Failed to clear logs: %v", err)
		return
	}
	s.printf("%s✅ %s%s\n", colorGreen, msg, colorReset)
}

func (s *Session) health(ctx context.Context) {
	h, err := s.client.Health(ctx)
	if err != nil {
		s.errorf("Server is not reachable: %v", err)
		return
	}
	s.printf("%s✅ Server %s (logging %s, enhancement %s)%s\n", colorGreen, h.Status, h.Logging, h.Enhancement, colorReset)
}

func (s *Session) printHistory() {
	if len(s.history) == 0 {
		s.printf("%sNo conversation history%s\n", colorGray, colorReset)
		return
	}
	for i, m := range s.history {
		s.printf("%d. %s%s:%s %s\n", i+1, colorBlue, m.Role, colorReset, truncateForDisplay(m.Content, snippetDisplayLen))
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, "\n%s📚 llmseo Help%s\n\n", colorCyan, colorReset)
	fmt.Fprintf(w, "%sCommands:%s\n", colorYellow, colorReset)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-22s - %s\n", c.Usage, c.Description)
	}
	fmt.Fprintf(w, "\n%sInput Tips:%s\n", colorYellow, colorReset)
	fmt.Fprintf(w, "  • Plain text is sent to chat with web search context\n")
	fmt.Fprintf(w, "  • Press Tab to complete commands\n")
	fmt.Fprintf(w, "  • Use Up/Down arrow keys to browse input history\n\n")
}

// truncateForDisplay flattens text to one line of at most maxLen runes.
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
