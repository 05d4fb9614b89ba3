package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/intake/internal/cli"
	"github.com/aretw0/intake/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Guided hackathon intake",
	Long: `Intake walks an organizer through setting up a hackathon, one question at a time,
and saves the event and its challenges as a draft.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (env INTAKE_* overrides it)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the layered configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// buildApp wires the engine for a command. The caller must Close the app.
func buildApp(ctx context.Context, cfg *config.Config) (*cli.App, error) {
	logger, err := cli.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	return cli.Build(ctx, cfg, logger)
}
