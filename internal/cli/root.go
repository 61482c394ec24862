// Package cli implements the regctl command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"regdocs-rag/internal/app"
	"regdocs-rag/internal/config"
	"regdocs-rag/internal/contextutil"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "regctl",
	Short: "Ingest and query a corpus of regulatory documents",
	Long: `regctl ingests regulatory documents (standards, guidance, directives) into a
vector index and answers questions about them with citations.

Example usage:
  regctl ingest                         # Ingest new and changed documents
  regctl ingest --rebuild               # Drop the index and ingest everything
  regctl search "risk acceptability"    # Show the closest passages
  regctl ask "What must a risk management file contain?"
  regctl mcp                            # Serve search and ask over MCP stdio`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
				return fmt.Errorf("failed to set config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Keep the terminal readable unless asked otherwise
		if !verbose && cfg.LogLevel < slog.LevelWarn {
			cfg.LogLevel = slog.LevelWarn
		}
		logger := app.SetupLogging(cfg)
		cmd.SetContext(contextutil.WithLogger(cmd.Context(), logger))
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = app.Version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured LOG_LEVEL instead of warnings only")
}

// openApp wires the application from the loaded config.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return app.New(ctx, cfg, opts)
}
