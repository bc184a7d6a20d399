package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/furqanlabs/furqan/internal/app"
	"github.com/furqanlabs/furqan/internal/config"
	"github.com/furqanlabs/furqan/internal/ingest"
	"github.com/furqanlabs/furqan/internal/verse"
)

var (
	ingestVersesPath   string
	ingestContextsPath string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the verse corpus into the database",
	Long: `Ingest reads JSON corpus files and writes them to PostgreSQL.
English verse text is embedded for similarity search; Arabic rows are
stored as pairing text. Annotations (theme, context, occasion of
revelation) are loaded from a separate file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd.Context())
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestVersesPath, "verses", "", "path to the verses JSON file")
	ingestCmd.Flags().StringVar(&ingestContextsPath, "contexts", "", "path to the annotations JSON file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context) error {
	if ingestVersesPath == "" && ingestContextsPath == "" {
		return fmt.Errorf("at least one of --verses or --contexts is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	in, err := ingest.New(a.LLM, a.Verses, logger)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	if ingestVersesPath != "" {
		n, err := in.Verses(ctx, ingestVersesPath)
		if err != nil {
			return fmt.Errorf("ingesting verses (%d written): %w", n, err)
		}
	}
	if ingestContextsPath != "" {
		if _, err := in.Contexts(ctx, ingestContextsPath); err != nil {
			return fmt.Errorf("ingesting contexts: %w", err)
		}
	}

	total, err := a.Verses.Count(ctx, verse.LangEnglish)
	if err != nil {
		return fmt.Errorf("counting corpus rows: %w", err)
	}
	logger.Info("ingest finished", "english_rows", total)
	return nil
}
