// Package cmd defines the furqan CLI: the API server, corpus ingestion,
// and version reporting.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/furqanlabs/furqan/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "furqan",
	Short: "Quran question-answering service",
	Long: `Furqan answers natural-language questions from the Quran corpus,
returning cited answers grounded in retrieved verses.

Run "furqan serve" to start the HTTP API, or "furqan ingest" to load the
verse corpus into the database.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger. JSON output is used outside of a
// terminal so log collectors get structured records.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	stat, err := os.Stderr.Stat()
	isTerminal := err == nil && stat.Mode()&os.ModeCharDevice != 0
	return log.New(log.Config{Level: level, JSON: !isTerminal})
}
