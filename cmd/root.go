// Package cmd implements the contentsync command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aimeuniverse/contentsync/internal/config"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "contentsync",
		Short: "Content synchronization and background job engine",
		Long: `contentsync pulls content from external providers into a canonical
store, tracks per-provider quota budgets, and runs derived-work jobs
such as media transcription.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("contentsync version %s\n", version)
		},
	})

	rootCmd.AddCommand(httpdCommand())
	rootCmd.AddCommand(syncCommand())
	rootCmd.AddCommand(workerCommand())
	rootCmd.AddCommand(schedulerCommand())
	rootCmd.AddCommand(statusCommand())
}

// version is overridable at build time.
var version = "dev"

// loadConfig loads configuration and builds the logger shared by all
// commands.
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if debug {
		cfg.Logging.Level = "debug"
	}

	log, logErr := logger.New(cfg.Logging)
	if logErr != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", logErr)
	}

	return cfg, log, nil
}
