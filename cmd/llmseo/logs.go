package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hession/llmseo/internal/trafficlog"
)

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect the MCP traffic logs",
	}
	cmd.AddCommand(
		newLogsViewCmd(a),
		newLogsStatsCmd(a),
		newLogsTailCmd(a),
		newLogsClearCmd(a),
	)
	return cmd
}

func newLogsViewCmd(a *app) *cobra.Command {
	var limit int
	var kind string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show the most recent log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := trafficlog.NewViewer(a.cfg.Traffic.LogDir)
			kinds := trafficlog.Kinds
			if kind != "" {
				k, err := trafficlog.ParseKind(kind)
				if err != nil {
					return err
				}
				kinds = []trafficlog.Kind{k}
			}
			for _, k := range kinds {
				if err := viewKind(cmd.OutOrStdout(), v, k, limit); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "num", "n", 10, "entries per log")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "requests, responses, tool_calls or errors (default all)")
	return cmd
}

func viewKind(w io.Writer, v *trafficlog.Viewer, k trafficlog.Kind, n int) error {
	fmt.Fprintf(w, "=== Recent %s ===\n", k)
	switch k {
	case trafficlog.KindRequests:
		items, err := v.RecentRequests(n)
		if err != nil {
			return err
		}
		for _, r := range items {
			fmt.Fprintf(w, "[%s] %s %s %s %s\n", r.Timestamp, r.RequestID, r.Method, r.Tool, r.Arguments)
		}
	case trafficlog.KindResponses:
		items, err := v.RecentResponses(n)
		if err != nil {
			return err
		}
		for _, r := range items {
			fmt.Fprintf(w, "[%s] %s %s\n", r.Timestamp, r.RequestID, truncate(r.Content, 200))
		}
	case trafficlog.KindToolCalls:
		items, err := v.RecentToolCalls(n)
		if err != nil {
			return err
		}
		for _, r := range items {
			fmt.Fprintf(w, "[%s] %s %s -> %d results\n", r.Timestamp, r.Tool, r.Arguments, r.Results)
		}
	case trafficlog.KindErrors:
		items, err := v.RecentErrors(n)
		if err != nil {
			return err
		}
		for _, r := range items {
			fmt.Fprintf(w, "[%s] %s: %s (%s)\n", r.Timestamp, r.Type, r.Message, r.Context)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func newLogsStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count entries per log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := trafficlog.NewViewer(a.cfg.Traffic.LogDir).Counts()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Log directory: %s\n", a.cfg.Traffic.LogDir)
			for _, k := range trafficlog.Kinds {
				fmt.Fprintf(w, "  %-25s %d\n", k.FileName(), counts[k])
			}
			return nil
		},
	}
}

func newLogsTailCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "tail [kind]",
		Short: "Print a log file, optionally following new lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k := trafficlog.KindRequests
			if len(args) == 1 {
				var err error
				if k, err = trafficlog.ParseKind(args[0]); err != nil {
					return err
				}
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return trafficlog.NewViewer(a.cfg.Traffic.LogDir).Tail(ctx, k, follow, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new lines")
	return cmd
}

func newLogsClearCmd(a *app) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the traffic logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if !local {
				msg, err := a.restClient().ClearLogs(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to clear logs on server (use --local when it is down): %w", err)
				}
				fmt.Fprintf(w, "✅ %s\n", msg)
				return nil
			}

			l, err := trafficlog.New(a.cfg.Traffic.LogDir)
			if err != nil {
				return err
			}
			defer l.Close()
			if err := l.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(w, "✅ Cleared logs in %s\n", l.Dir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "truncate the files directly instead of asking the server")
	return cmd
}
