// Package cmd implements the pensieve command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pensieve-ai/pensieve/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "pensieve",
	Short: "Pensieve indexes study material and answers questions from it",
	Long: `Pensieve is a retrieval-augmented engine for study material.

It chunks documents, embeds them with Gemini, stores the vectors in
PostgreSQL (pgvector), and answers questions grounded in the indexed
content.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	slog.SetDefault(initLogger())
}

// initLogger builds the process logger. DEBUG in the environment enables
// debug level. Output goes to stderr so command output stays clean on
// stdout.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}
