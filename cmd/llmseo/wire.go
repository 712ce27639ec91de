package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hession/llmseo/internal/agent"
	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/enhance"
	"github.com/hession/llmseo/internal/extract"
	"github.com/hession/llmseo/internal/llm"
	"github.com/hession/llmseo/internal/mcpclient"
	"github.com/hession/llmseo/internal/server"
	"github.com/hession/llmseo/internal/store"
	"github.com/hession/llmseo/internal/tools"
	"github.com/hession/llmseo/internal/trafficlog"
	"github.com/hession/llmseo/internal/websearch"
)

// buildServer wires the search proxy from config. The caller closes traffic.
func buildServer(cfg *config.Config) (*server.Server, *trafficlog.Logger, error) {
	traffic, err := trafficlog.New(cfg.Traffic.LogDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open traffic logs: %w", err)
	}

	enhancer := enhance.New(cfg.Enhancement)
	search := tools.NewSearchWebTool(websearch.New(cfg.Search), traffic, cfg.Search.DefaultLimit)
	fetch := tools.NewFetchURLTool(extract.NewFetcher(cfg.Extract), extractOptions(cfg.Extract))

	srv := server.New(cfg.Server, server.Deps{
		Registry: tools.NewDefaultRegistry(search, fetch),
		Search:   search,
		Enhancer: enhancer,
		Traffic:  traffic,
	}, version)
	return srv, traffic, nil
}

func extractOptions(cfg config.ExtractConfig) extract.Options {
	opts := extract.DefaultOptions()
	if cfg.MaxChars > 0 {
		opts.MaxChars = cfg.MaxChars
	}
	if cfg.MinBlockChars > 0 {
		opts.MinBlockChars = cfg.MinBlockChars
	}
	return opts
}

var errNoAPIKey = errors.New("model API key not configured (set OPENAI_API_KEY in .env or config/.secrets)")

func (a *app) llmClient() (*llm.Client, error) {
	if !a.cfg.IsAPIKeyConfigured() {
		return nil, errNoAPIKey
	}
	m := a.cfg.Model
	var opts []llm.Option
	if m.MaxRetries > 0 {
		opts = append(opts, llm.WithMaxRetries(m.MaxRetries))
	}
	if m.TimeoutSeconds > 0 {
		opts = append(opts, llm.WithTimeout(time.Duration(m.TimeoutSeconds)*time.Second))
	}
	client := llm.New(m.APIKey, m.BaseURL, m.Model, m.Temperature, m.MaxTokens, opts...)
	client.SetSearchContextTemplate(a.prompts.Prompts.SearchContext)
	return client, nil
}

// searcher is what the agents use to reach the running server.
type searcher interface {
	llm.Searcher
	Close() error
}

type restSearcher struct {
	*mcpclient.Client
}

func (restSearcher) Close() error { return nil }

// searcher connects to the server over the transport chosen by --transport.
func (a *app) searcher(ctx context.Context) (searcher, error) {
	base := a.cfg.Client.MCPURL
	switch strings.ToLower(a.transport) {
	case "", "rest":
		return restSearcher{mcpclient.New(base, a.clientTimeout())}, nil
	case "mcp":
		return mcpclient.Connect(ctx, strings.TrimSuffix(base, "/")+"/mcp", version, nil)
	default:
		return nil, fmt.Errorf("unknown transport %q (want rest or mcp)", a.transport)
	}
}

func (a *app) restClient() *mcpclient.Client {
	return mcpclient.New(a.cfg.Client.MCPURL, a.clientTimeout())
}

// openStore opens the run history. A failure only disables history.
func (a *app) openStore() store.Store {
	st, err := store.NewSQLiteStore(a.cfg.Store.DBPath)
	if err != nil {
		fmt.Printf("Warning: run history disabled: %v\n", err)
		return nil
	}
	return st
}

func closeStore(st store.Store) {
	if st != nil {
		st.Close()
	}
}

func (a *app) fetcher() *extract.Fetcher {
	return extract.NewFetcher(a.cfg.Extract)
}

func (a *app) optimizer(chat agent.Chatter, s llm.Searcher, st store.Store, onRound func(agent.RoundReport)) *agent.Optimizer {
	opts := []agent.OptimizerOption{
		agent.WithFetcher(a.fetcher()),
		agent.WithRoundHandler(onRound),
	}
	if st != nil {
		opts = append(opts, agent.WithStore(st))
	}
	return agent.NewOptimizer(chat, s, a.prompts.Prompts, a.cfg.Optimize, opts...)
}
