package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/furqanlabs/furqan/internal/log"
	"github.com/furqanlabs/furqan/internal/quran"
	"github.com/furqanlabs/furqan/internal/verse"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

type upsert struct {
	lang    string
	ref     quran.VerseRef
	content string
	hasVec  bool
}

type fakeStore struct {
	mu       sync.Mutex
	verses   []upsert
	contexts map[quran.VerseRef]verse.Context
	err      error
}

func (f *fakeStore) UpsertVerse(_ context.Context, lang string, ref quran.VerseRef, content string, embedding []float32) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verses = append(f.verses, upsert{lang: lang, ref: ref, content: content, hasVec: embedding != nil})
	return nil
}

func (f *fakeStore) UpsertContext(_ context.Context, ref quran.VerseRef, annotation verse.Context) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.contexts == nil {
		f.contexts = make(map[quran.VerseRef]verse.Context)
	}
	f.contexts[ref] = annotation
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func newTestIngestor(t *testing.T, e *fakeEmbedder, s *fakeStore) *Ingestor {
	t.Helper()
	in, err := New(e, s, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return in
}

func TestVersesIngestsBothLanguages(t *testing.T) {
	path := writeFile(t, "verses.json", `[
		{"surah": 1, "ayah": 1, "arabic": "بسم الله", "english": "In the name of Allah"},
		{"surah": 1, "ayah": 2, "english": "All praise is due to Allah"}
	]`)
	s := &fakeStore{}
	in := newTestIngestor(t, &fakeEmbedder{}, s)

	n, err := in.Verses(context.Background(), path)
	if err != nil {
		t.Fatalf("Verses: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	// Row 1 yields en+ar, row 2 (no arabic) yields en only.
	if len(s.verses) != 3 {
		t.Fatalf("upserts = %d, want 3", len(s.verses))
	}
	for _, u := range s.verses {
		switch u.lang {
		case verse.LangEnglish:
			if !u.hasVec {
				t.Errorf("english row %s stored without embedding", u.ref.Key())
			}
		case verse.LangArabic:
			if u.hasVec {
				t.Errorf("arabic row %s stored with embedding", u.ref.Key())
			}
		default:
			t.Errorf("unexpected lang %q", u.lang)
		}
	}
}

func TestVersesRejectsInvalidReference(t *testing.T) {
	path := writeFile(t, "verses.json", `[{"surah": 115, "ayah": 1, "english": "x"}]`)
	in := newTestIngestor(t, &fakeEmbedder{}, &fakeStore{})

	if _, err := in.Verses(context.Background(), path); err == nil {
		t.Fatal("Verses() should reject surah 115")
	}
}

func TestVersesEmbedFailureAborts(t *testing.T) {
	path := writeFile(t, "verses.json", `[{"surah": 1, "ayah": 1, "english": "x"}]`)
	in := newTestIngestor(t, &fakeEmbedder{err: errors.New("quota")}, &fakeStore{})

	if _, err := in.Verses(context.Background(), path); err == nil {
		t.Fatal("Verses() should surface embedding failure")
	}
}

func TestVersesMalformedFile(t *testing.T) {
	path := writeFile(t, "verses.json", `{"not": "an array"}`)
	in := newTestIngestor(t, &fakeEmbedder{}, &fakeStore{})

	if _, err := in.Verses(context.Background(), path); err == nil {
		t.Fatal("Verses() should reject a non-array file")
	}
}

func TestContextsIngest(t *testing.T) {
	path := writeFile(t, "contexts.json", `[
		{"surah": 2, "ayah": 153, "context_summary": "on patience", "theme": "perseverance", "asbab_summary": "revealed in Medina"}
	]`)
	s := &fakeStore{}
	in := newTestIngestor(t, &fakeEmbedder{}, s)

	n, err := in.Contexts(context.Background(), path)
	if err != nil {
		t.Fatalf("Contexts: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}

	got := s.contexts[quran.VerseRef{Surah: 2, Ayah: 153}]
	if got.Summary != "on patience" || got.Theme != "perseverance" || got.Asbab != "revealed in Medina" {
		t.Errorf("annotation = %+v", got)
	}
}
