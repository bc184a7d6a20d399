// Package ingest loads the verse corpus into the store: paired
// Arabic/English rows with embeddings computed over the English text, plus
// optional editorial annotations.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/furqanlabs/furqan/internal/quran"
	"github.com/furqanlabs/furqan/internal/verse"
)

// embedConcurrency bounds parallel embedding calls; the embedding API is
// rate limited per project.
const embedConcurrency = 4

// VerseRow is one corpus entry in the input file.
type VerseRow struct {
	Surah   int    `json:"surah"`
	Ayah    int    `json:"ayah"`
	Arabic  string `json:"arabic"`
	English string `json:"english"`
}

// ContextRow is one annotation entry in the input file.
type ContextRow struct {
	Surah   int    `json:"surah"`
	Ayah    int    `json:"ayah"`
	Summary string `json:"context_summary"`
	Theme   string `json:"theme"`
	Asbab   string `json:"asbab_summary"`
}

// embedder computes the query embedding for a verse's English text.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// store is the subset of the verse store ingestion writes through.
type store interface {
	UpsertVerse(ctx context.Context, lang string, ref quran.VerseRef, content string, embedding []float32) error
	UpsertContext(ctx context.Context, ref quran.VerseRef, annotation verse.Context) error
}

// Ingestor loads corpus files into the store.
type Ingestor struct {
	embedder embedder
	store    store
	logger   *slog.Logger
}

// New creates an Ingestor.
func New(e embedder, s store, logger *slog.Logger) (*Ingestor, error) {
	if e == nil || s == nil {
		return nil, fmt.Errorf("embedder and store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{embedder: e, store: s, logger: logger}, nil
}

// Verses ingests a JSON array of VerseRow. English rows are embedded and
// stored with their vector; Arabic rows are stored as pairing text only.
// Rows are processed with bounded concurrency; the first failure aborts
// the run.
func (in *Ingestor) Verses(ctx context.Context, path string) (int, error) {
	rows, err := readRows[VerseRow](path)
	if err != nil {
		return 0, err
	}

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for _, row := range rows {
		g.Go(func() error {
			ref := quran.VerseRef{Surah: row.Surah, Ayah: row.Ayah}
			if !ref.Valid() {
				return fmt.Errorf("invalid verse reference %d:%d", row.Surah, row.Ayah)
			}
			if row.English == "" {
				return fmt.Errorf("missing english text for %s", ref.Key())
			}

			embedding, err := in.embedder.Embed(ctx, row.English)
			if err != nil {
				return fmt.Errorf("embedding %s: %w", ref.Key(), err)
			}
			if err := in.store.UpsertVerse(ctx, verse.LangEnglish, ref, row.English, embedding); err != nil {
				return err
			}
			if row.Arabic != "" {
				if err := in.store.UpsertVerse(ctx, verse.LangArabic, ref, row.Arabic, nil); err != nil {
					return err
				}
			}

			if n := done.Add(1); n%500 == 0 {
				in.logger.Info("ingest progress", "verses", n, "total", len(rows))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(done.Load()), err
	}
	in.logger.Info("verse ingest complete", "verses", len(rows))
	return len(rows), nil
}

// Contexts ingests a JSON array of ContextRow. No embeddings are involved,
// so rows are written sequentially.
func (in *Ingestor) Contexts(ctx context.Context, path string) (int, error) {
	rows, err := readRows[ContextRow](path)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		ref := quran.VerseRef{Surah: row.Surah, Ayah: row.Ayah}
		if !ref.Valid() {
			return 0, fmt.Errorf("invalid verse reference %d:%d", row.Surah, row.Ayah)
		}
		err := in.store.UpsertContext(ctx, ref, verse.Context{
			Summary: row.Summary,
			Theme:   row.Theme,
			Asbab:   row.Asbab,
		})
		if err != nil {
			return 0, err
		}
	}
	in.logger.Info("context ingest complete", "contexts", len(rows))
	return len(rows), nil
}

// readRows parses a JSON array file.
func readRows[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, nil
}
