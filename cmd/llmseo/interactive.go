package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hession/llmseo/internal/agent"
	"github.com/hession/llmseo/internal/cli"
	"github.com/hession/llmseo/internal/logger"
)

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"repl"},
		Short:   "Start the interactive client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), a)
		},
	}
}

func runInteractive(ctx context.Context, a *app) error {
	client := a.restClient()
	opts := []cli.SessionOption{}

	if chat, err := a.llmClient(); err == nil {
		st := a.openStore()
		defer closeStore(st)
		opts = append(opts,
			cli.WithChat(chat),
			cli.WithSelector(agent.NewSiteSelector(chat, a.prompts.Prompts)),
			cli.WithResearcher(agent.NewResearcher(chat, client, a.fetcher(), a.prompts.Prompts, extractOptions(a.cfg.Extract), st)),
		)
	} else {
		logger.Warn("Interactive client without model: %v", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return cli.Run(ctx, cli.NewSession(client, opts...), version)
}
