// Package main implements the memscope CLI: an interactive memory-backed
// chat, the quickstart demo and single-shot ask and compare commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/memscope/internal/app"
	"github.com/fyrsmithlabs/memscope/internal/config"
	"github.com/fyrsmithlabs/memscope/internal/logging"
)

var (
	// configPath overrides ~/.config/memscope/config.yaml
	configPath string
	// logLevel for the CLI; turns are noisy at info
	logLevel string
	// backend and model select the provider for a command
	backend string
	model   string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "memscope",
	Short: "Chat with LLM backends that remember you",
	Long: `memscope talks to OpenAI, Gemini or Anthropic models through a memory layer.
Facts you state are extracted after each turn, stored durably and recalled
into later prompts for the same entity.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/memscope/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "backend: openai, gemini or anthropic (default openai)")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "model override for the selected backend")
}

// loadApp reads configuration and wires the components. The CLI logs in
// console format to stderr so replies on stdout stay readable.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logCfg, err := logging.FromSettings(logLevel, "console")
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return app.New(ctx, cfg, logger, version)
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "memscope %s\n", version)
		},
	})
}
