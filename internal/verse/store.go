// Package verse provides the PostgreSQL-backed corpus store: similarity
// search over English verse rows plus keyed lookups of paired Arabic text
// and editorial annotations.
package verse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/furqanlabs/furqan/internal/quran"
)

// ErrStore marks storage-layer failures so callers can classify them with
// errors.Is without inspecting pgx internals.
var ErrStore = errors.New("verse store")

// Corpus language codes.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

// Match is a similarity-search hit: a verse reference, its English text,
// and cosine similarity to the query embedding in [0, 1].
type Match struct {
	Ref        quran.VerseRef
	Content    string
	Similarity float64
}

// Context is the editorial annotation attached to a verse. Asbab carries
// the occasion-of-revelation summary; all fields may be empty.
type Context struct {
	Summary string
	Theme   string
	Asbab   string
}

// Store manages corpus rows backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a corpus store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Match runs similarity search via the match_verses SQL function.
// Results arrive pre-filtered by minSimilarity and ordered by similarity
// descending; an empty result is not an error.
func (s *Store) Match(ctx context.Context, embedding []float32, topK int, lang string, minSimilarity float64) ([]Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT surah, ayah, content, similarity
		 FROM match_verses($1, $2, $3, $4)`,
		pgvector.NewVector(embedding), topK, lang, minSimilarity,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: matching verses: %w", ErrStore, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Ref.Surah, &m.Ref.Ayah, &m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning match: %w", ErrStore, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating matches: %w", ErrStore, err)
	}
	return matches, nil
}

// Texts fetches verse text for the given references in one query.
// References absent from the corpus are simply missing from the result map;
// the caller decides whether a gap matters.
func (s *Store) Texts(ctx context.Context, refs []quran.VerseRef, lang string) (map[quran.VerseRef]string, error) {
	if len(refs) == 0 {
		return map[quran.VerseRef]string{}, nil
	}

	surahs, ayahs := splitRefs(refs)
	rows, err := s.pool.Query(ctx,
		`SELECT v.surah, v.ayah, v.content
		 FROM verses v
		 JOIN unnest($2::int[], $3::int[]) AS want(surah, ayah)
		   ON v.surah = want.surah AND v.ayah = want.ayah
		 WHERE v.lang = $1`,
		lang, surahs, ayahs,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s texts: %w", ErrStore, lang, err)
	}
	defer rows.Close()

	texts := make(map[quran.VerseRef]string, len(refs))
	for rows.Next() {
		var ref quran.VerseRef
		var content string
		if err := rows.Scan(&ref.Surah, &ref.Ayah, &content); err != nil {
			return nil, fmt.Errorf("%w: scanning text: %w", ErrStore, err)
		}
		texts[ref] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating texts: %w", ErrStore, err)
	}
	return texts, nil
}

// Contexts fetches editorial annotations for the given references.
// Sparse coverage is expected; missing references are not errors.
func (s *Store) Contexts(ctx context.Context, refs []quran.VerseRef) (map[quran.VerseRef]Context, error) {
	if len(refs) == 0 {
		return map[quran.VerseRef]Context{}, nil
	}

	surahs, ayahs := splitRefs(refs)
	rows, err := s.pool.Query(ctx,
		`SELECT c.surah, c.ayah, c.context_summary, c.theme, c.asbab_summary
		 FROM verse_contexts c
		 JOIN unnest($1::int[], $2::int[]) AS want(surah, ayah)
		   ON c.surah = want.surah AND c.ayah = want.ayah`,
		surahs, ayahs,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching contexts: %w", ErrStore, err)
	}
	defer rows.Close()

	contexts := make(map[quran.VerseRef]Context, len(refs))
	for rows.Next() {
		var ref quran.VerseRef
		var c Context
		if err := rows.Scan(&ref.Surah, &ref.Ayah, &c.Summary, &c.Theme, &c.Asbab); err != nil {
			return nil, fmt.Errorf("%w: scanning context: %w", ErrStore, err)
		}
		contexts[ref] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating contexts: %w", ErrStore, err)
	}
	return contexts, nil
}

// UpsertVerse inserts or replaces a corpus row. embedding may be nil for
// rows that are pairing text only (Arabic).
func (s *Store) UpsertVerse(ctx context.Context, lang string, ref quran.VerseRef, content string, embedding []float32) error {
	if !ref.Valid() {
		return fmt.Errorf("invalid verse reference %s", ref.Key())
	}
	if content == "" {
		return fmt.Errorf("content is required for %s", ref.Key())
	}

	var vec *pgvector.Vector
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO verses (lang, surah, ayah, content, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (lang, surah, ayah)
		 DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		lang, ref.Surah, ref.Ayah, content, vec,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting verse %s/%s: %w", ErrStore, lang, ref.Key(), err)
	}
	return nil
}

// UpsertContext inserts or replaces an annotation row.
func (s *Store) UpsertContext(ctx context.Context, ref quran.VerseRef, annotation Context) error {
	if !ref.Valid() {
		return fmt.Errorf("invalid verse reference %s", ref.Key())
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO verse_contexts (surah, ayah, context_summary, theme, asbab_summary)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (surah, ayah)
		 DO UPDATE SET context_summary = EXCLUDED.context_summary,
		               theme = EXCLUDED.theme,
		               asbab_summary = EXCLUDED.asbab_summary`,
		ref.Surah, ref.Ayah, annotation.Summary, annotation.Theme, annotation.Asbab,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting context %s: %w", ErrStore, ref.Key(), err)
	}
	return nil
}

// Count returns the number of corpus rows for a language. Used by the
// readiness probe and ingest reporting.
func (s *Store) Count(ctx context.Context, lang string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM verses WHERE lang = $1`, lang,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting verses: %w", ErrStore, err)
	}
	return n, nil
}

// splitRefs converts references into parallel surah/ayah arrays for unnest.
func splitRefs(refs []quran.VerseRef) ([]int, []int) {
	surahs := make([]int, len(refs))
	ayahs := make([]int, len(refs))
	for i, r := range refs {
		surahs[i] = r.Surah
		ayahs[i] = r.Ayah
	}
	return surahs, ayahs
}
