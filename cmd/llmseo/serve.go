package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/trafficlog"
)

func newServeCmd(a *app) *cobra.Command {
	var pidFile, address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				a.cfg.Server.Address = address
			}
			if !a.cfg.IsSearchConfigured() && strings.EqualFold(a.cfg.Search.Provider, "google") {
				logger.Warn("Google API key or CSE ID missing; search_web will return a configuration error entry")
			}

			srv, traffic, err := buildServer(a.cfg)
			if err != nil {
				return err
			}
			defer traffic.Close()

			retention := trafficlog.NewRetention(traffic, a.cfg.Traffic.RetentionDays, a.cfg.Traffic.Schedule)
			if err := retention.Start(); err != nil {
				return err
			}
			defer retention.Stop()

			if pidFile != "" {
				if err := writePIDFile(pidFile, os.Getpid()); err != nil {
					return err
				}
				defer os.Remove(pidFile)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if a.cfg.Traffic.Console {
				go func() {
					if err := trafficlog.NewViewer(traffic.Dir()).Follow(ctx, trafficlog.KindRequests, cmd.OutOrStdout()); err != nil {
						logger.Warn("Console traffic echo stopped: %v", err)
					}
				}()
			}

			fmt.Printf("🚀 llmseo server listening on %s (logs in %s)\n", a.cfg.Server.Address, traffic.Dir())
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid-file", "", "write the server PID to this file (default from config)")
	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("pid-file") {
			pidFile = a.cfg.Server.PIDFile
		}
		return nil
	}
	return cmd
}

func newStopCmd(a *app) *cobra.Command {
	var pidFile string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a server started with --pid-file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pidFile == "" {
				pidFile = a.cfg.Server.PIDFile
			}
			pid, err := readPIDFile(pidFile)
			if err != nil {
				return err
			}
			proc, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				if errors.Is(err, os.ErrProcessDone) {
					os.Remove(pidFile)
					fmt.Printf("Server (PID %d) was not running; removed stale PID file\n", pid)
					return nil
				}
				return fmt.Errorf("failed to stop server (PID %d): %w", pid, err)
			}
			fmt.Printf("✅ Sent stop signal to server (PID %d)\n", pid)
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid-file", "", "PID file written by serve (default from config)")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the server is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.restClient().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("server at %s is not reachable: %w", a.cfg.Client.MCPURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is %s (logging %s, enhancement %s)\n", a.cfg.Client.MCPURL, h.Status, h.Logging, h.Enhancement)
			return nil
		},
	}
}

func writePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("no PID file at %s; is the server running?", path)
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", path)
	}
	return pid, nil
}
