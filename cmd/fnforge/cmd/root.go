package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fnforge/fnforge/internal/constants"
	"github.com/fnforge/fnforge/internal/logger"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "fnforge",
	Short: "fnforge deploys serverless function endpoints",
	Long: `fnforge - deployment engine for serverless function endpoints

Applies a declarative deployment plan against both generations of the
functions platform: function resources, schedules, task queues, and
auth-blocking hooks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// Bootstrap logger for the window before the config is loaded;
		// deploy re-initializes from cfg.LogLevel and cfg.Environment.
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger.Initialize(constants.Development, level)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.fnforge/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
