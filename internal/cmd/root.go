// Package cmd implements the remedy CLI for inspecting the recovery
// pipeline's durable state: learned patterns, recovery attempts and their
// journals, and adaptation suggestions awaiting review.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/remedy/internal/config"
	"github.com/harrison/remedy/internal/store"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for remedy
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remedy",
		Short: "Self-healing recovery pipeline inspector",
		Long: `Remedy detects anomalies in multi-stage workflows, classifies them,
synthesizes remediation plans, executes them with human-in-the-loop
branching, and learns from outcomes.

This CLI inspects the pipeline's durable state and feeds user input to
recoveries waiting on it.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "path to the remedy configuration file")
	cmd.PersistentFlags().String("db", "", "override the store path from configuration")

	cmd.AddCommand(NewPatternsCommand())
	cmd.AddCommand(NewAttemptsCommand())
	cmd.AddCommand(NewSuggestionsCommand())
	cmd.AddCommand(NewResumeCommand())

	return cmd
}

// loadConfig resolves configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.StorePath = db
	}
	return cfg, nil
}

// openStore opens the configured store for a command invocation.
func openStore(cmd *cobra.Command) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.NewStore(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", cfg.StorePath, err)
	}
	return s, cfg, nil
}
