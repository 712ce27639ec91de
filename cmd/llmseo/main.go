package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/logger"
)

var (
	version = "0.1.0"
)

// app carries what every subcommand needs after the root has loaded config.
type app struct {
	configDir string
	transport string
	cfg       *config.Config
	prompts   *config.PromptConfig
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "llmseo",
		Short: "llmseo - search proxy and LLM snippet optimization toolkit",
		Long: `llmseo runs a web search proxy with an MCP-style HTTP endpoint and
chains LLM calls on top of it.

It can:
  • Serve search_web over REST JSON-RPC and the MCP streamable transport
  • Log every request, response, tool call and error as JSONL
  • Show which search results a model would pick to read
  • Rewrite a test entry until the model picks it, then propose website copy
  • Research a question by reading the best sites and summarizing them`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), a)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default ./config)")
	rootCmd.PersistentFlags().StringVar(&a.transport, "transport", "rest", "how client commands reach the server: rest or mcp")

	rootCmd.AddCommand(
		newServeCmd(a),
		newStopCmd(a),
		newStatusCmd(a),
		newSearchCmd(a),
		newSelectCmd(a),
		newOptimizeCmd(a),
		newResearchCmd(a),
		newWebsiteCmd(a),
		newCompanyCmd(a),
		newLogsCmd(a),
		newHistoryCmd(a),
		newInteractiveCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) load() error {
	if a.configDir != "" {
		config.SetConfigDir(a.configDir)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	logDir := cfg.Logging.Dir
	if logDir == "" {
		logDir = config.LogDir()
	}
	if err := logger.Init(logger.Config{
		LogDir:     logDir,
		Level:      logger.ParseLevel(cfg.Logging.Level),
		MaxDays:    cfg.Logging.MaxDays,
		ConsoleOut: cfg.Logging.Console,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	logConfigInfo(cfg)

	prompts, err := config.LoadPromptConfig()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	a.prompts = prompts
	return nil
}

func logConfigInfo(cfg *config.Config) {
	logger.Info("Config loaded: model=%s base_url=%s search=%s mcp_url=%s",
		cfg.Model.Model, cfg.Model.BaseURL, cfg.Search.Provider, cfg.Client.MCPURL)
	if !cfg.IsAPIKeyConfigured() {
		logger.Warn("Model API key not configured; LLM commands will fail")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func (a *app) clientTimeout() time.Duration {
	if a.cfg.Client.TimeoutSeconds > 0 {
		return time.Duration(a.cfg.Client.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

func newConfigCmd(a *app) *cobra.Command {
	var checkModel bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(a.cfg.String())

			path, _ := config.ConfigPath()
			fmt.Printf("\nConfig file path: %s\n", path)
			promptPath, _ := config.PromptConfigPath()
			fmt.Printf("Prompt file path: %s\n", promptPath)

			if checkModel {
				return a.checkModel(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkModel, "check-model", false, "verify the model API key by listing models")
	return cmd
}

func (a *app) checkModel(ctx context.Context) error {
	chat, err := a.llmClient()
	if err != nil {
		return err
	}
	ids, err := chat.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("model API check failed: %w", err)
	}
	found := false
	for _, id := range ids {
		if id == chat.Model() {
			found = true
			break
		}
	}
	fmt.Printf("\n✅ Model API reachable (%d models)\n", len(ids))
	if !found {
		fmt.Printf("⚠️  Configured model %q is not in the list\n", chat.Model())
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// version needs no config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "llmseo v%s\n", version)
		},
	}
}
