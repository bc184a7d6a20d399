// Package quran provides verse reference types and citation parsing for
// Quranic text. It has no external dependencies and no I/O; everything here
// operates on plain strings and small value types.
package quran

import (
	"fmt"
	"sort"
)

// Structural bounds for verse references.
// MaxAyah is the corpus-wide maximum (Surah Al-Baqarah has 286 ayahs);
// it is a defensive bound, not a per-surah count.
const (
	MaxSurah = 114
	MaxAyah  = 286
)

// VerseRef identifies a single ayah by surah and ayah number.
//
// The same type serves two roles: a structural reference into the corpus
// (retrieval, passage expansion) and a citation extracted from or attached
// to an answer. A citation may reference verses outside the retrieved
// context — that is a validity question, not a structural one.
type VerseRef struct {
	Surah int `json:"surah"`
	Ayah  int `json:"ayah"`
}

// Key returns the canonical "surah:ayah" identity string.
func (r VerseRef) Key() string {
	return fmt.Sprintf("%d:%d", r.Surah, r.Ayah)
}

// String renders the reference in the display form used in answers.
func (r VerseRef) String() string {
	return fmt.Sprintf("(%d:%d)", r.Surah, r.Ayah)
}

// Valid reports whether the reference falls within structural bounds.
func (r VerseRef) Valid() bool {
	return r.Surah >= 1 && r.Surah <= MaxSurah && r.Ayah >= 1 && r.Ayah <= MaxAyah
}

// DedupeRefs removes duplicate references, keeping the first occurrence of
// each surah:ayah pair. Order of first occurrences is preserved.
func DedupeRefs(refs []VerseRef) []VerseRef {
	if len(refs) == 0 {
		return refs
	}
	seen := make(map[VerseRef]struct{}, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SortRefs orders references by surah, then ayah. Used where a canonical
// presentation order is wanted (e.g. citation lists in final responses).
func SortRefs(refs []VerseRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Surah != refs[j].Surah {
			return refs[i].Surah < refs[j].Surah
		}
		return refs[i].Ayah < refs[j].Ayah
	})
}
