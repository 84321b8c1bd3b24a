// Package cmd wires the halsaveda CLI: an interactive chat TUI (default),
// a one-shot ask command, the answer service, and knowledge base ingestion.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

var (
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "halsaveda",
	Short: "HälsaVeda Copilot - a grounded assistant for Swedish healthcare",
	Long: `HälsaVeda Copilot answers questions about Swedish healthcare using
content from 1177.se, with every answer citing its sources.

Running halsaveda without a subcommand starts the interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return log.New(log.Config{Level: level, JSON: flagLogJSON})
}
