// Package retrieval turns a user question into an ordered, metadata-rich
// set of verse passages: embed, vector search, optional rerank, passage
// expansion, and concurrent Arabic/annotation attachment.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/furqanlabs/furqan/internal/quran"
	"github.com/furqanlabs/furqan/internal/verse"
)

// expansionWindow is the number of neighboring ayahs attached on each side
// of a retrieval anchor.
const expansionWindow = 2

// Embedder is the single embedding operation the engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Source is the corpus access the engine needs, satisfied by *verse.Store.
type Source interface {
	Match(ctx context.Context, embedding []float32, topK int, lang string, minSimilarity float64) ([]verse.Match, error)
	Texts(ctx context.Context, refs []quran.VerseRef, lang string) (map[quran.VerseRef]string, error)
	Contexts(ctx context.Context, refs []quran.VerseRef) (map[quran.VerseRef]verse.Context, error)
}

// PairedVerse is one retrieved passage with both language texts and
// optional editorial annotations. Slice order is the prompt order.
type PairedVerse struct {
	Ref            quran.VerseRef `json:"ref"`
	Arabic         string         `json:"arabic"`
	English        string         `json:"english"`
	Similarity     float64        `json:"similarity"`
	ContextSummary string         `json:"context_summary,omitempty"`
	Theme          string         `json:"theme,omitempty"`
}

// Config holds engine parameters, validated upstream by config.Validate.
type Config struct {
	// TopK is the number of anchors carried into expansion.
	TopK int
	// MinSimilarity filters out weak vector matches before ranking.
	MinSimilarity float64
	// Candidates is the wider pool fetched when a reranker is active.
	Candidates int
}

// Engine runs the retrieval pipeline.
type Engine struct {
	embedder Embedder
	source   Source
	reranker Reranker
	cfg      Config
	logger   *slog.Logger
}

// NewEngine creates an Engine. reranker may be nil to keep vector order.
func NewEngine(embedder Embedder, source Source, reranker Reranker, cfg Config, logger *slog.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.TopK < 1 {
		return nil, fmt.Errorf("top k must be positive, got %d", cfg.TopK)
	}
	if cfg.Candidates < cfg.TopK {
		cfg.Candidates = cfg.TopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, source: source, reranker: reranker, cfg: cfg, logger: logger}, nil
}

// Retrieve runs the full pipeline for one query. An empty result with nil
// error means the corpus has nothing relevant; the caller owns the
// "no verses found" response.
//
// Failure semantics: embedding and text lookups are fatal, annotation
// lookup degrades to unannotated passages, and a reranker failure degrades
// to vector order.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]PairedVerse, error) {
	embedding, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	fetchK := e.cfg.TopK
	if e.reranker != nil {
		fetchK = e.cfg.Candidates
	}

	matches, err := e.source.Match(ctx, embedding, fetchK, verse.LangEnglish, e.cfg.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("searching verses: %w", err)
	}
	if len(matches) == 0 {
		e.logger.Debug("no matches above similarity floor", "min_similarity", e.cfg.MinSimilarity)
		return nil, nil
	}

	if e.reranker != nil {
		reranked, rerankErr := e.reranker.Rerank(ctx, query, matches)
		if rerankErr != nil {
			e.logger.Warn("rerank failed, keeping vector order", "error", rerankErr)
		} else {
			matches = reranked
		}
	}
	if len(matches) > e.cfg.TopK {
		matches = matches[:e.cfg.TopK]
	}

	anchors := make(map[quran.VerseRef]verse.Match, len(matches))
	for _, m := range matches {
		anchors[m.Ref] = m
	}

	refs := expandRefs(matches)

	var (
		arabic   map[quran.VerseRef]string
		english  map[quran.VerseRef]string
		contexts map[quran.VerseRef]verse.Context
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var fetchErr error
		arabic, fetchErr = e.source.Texts(gctx, refs, verse.LangArabic)
		if fetchErr != nil {
			return fmt.Errorf("fetching arabic texts: %w", fetchErr)
		}
		return nil
	})
	g.Go(func() error {
		var fetchErr error
		english, fetchErr = e.source.Texts(gctx, refs, verse.LangEnglish)
		if fetchErr != nil {
			return fmt.Errorf("fetching english texts: %w", fetchErr)
		}
		return nil
	})
	g.Go(func() error {
		// Annotations are best-effort: a failure here degrades the prompt,
		// it does not fail the retrieval.
		var fetchErr error
		contexts, fetchErr = e.source.Contexts(gctx, refs)
		if fetchErr != nil {
			e.logger.Warn("context lookup failed, continuing without annotations", "error", fetchErr)
			contexts = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paired := make([]PairedVerse, 0, len(refs))
	for _, ref := range refs {
		pv := PairedVerse{Ref: ref, Similarity: 1.0}
		if anchor, ok := anchors[ref]; ok {
			pv.English = anchor.Content
			pv.Similarity = anchor.Similarity
		} else if text, ok := english[ref]; ok {
			pv.English = text
		} else {
			// Expansion past a surah boundary; the reference has no row.
			continue
		}
		pv.Arabic = arabic[ref]
		if c, ok := contexts[ref]; ok {
			pv.ContextSummary = c.Summary
			pv.Theme = c.Theme
		}
		paired = append(paired, pv)
	}

	return paired, nil
}

// expandRefs builds the expanded, insertion-ordered, deduplicated reference
// list: each anchor contributes its window of neighboring ayahs, clamped at
// ayah 1. First writer wins on overlap.
func expandRefs(matches []verse.Match) []quran.VerseRef {
	seen := make(map[quran.VerseRef]struct{})
	refs := make([]quran.VerseRef, 0, len(matches)*(2*expansionWindow+1))
	for _, m := range matches {
		for d := -expansionWindow; d <= expansionWindow; d++ {
			ref := quran.VerseRef{Surah: m.Ref.Surah, Ayah: m.Ref.Ayah + d}
			if ref.Ayah < 1 || ref.Ayah > quran.MaxAyah {
				continue
			}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

// ContextRefs returns the references of the given passages, in order.
// Used to validate answer citations against what the model was shown.
func ContextRefs(passages []PairedVerse) []quran.VerseRef {
	refs := make([]quran.VerseRef, len(passages))
	for i, p := range passages {
		refs[i] = p.Ref
	}
	return refs
}
