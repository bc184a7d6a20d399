package quran

import (
	"regexp"
	"strconv"
	"strings"
)

// citationRe matches verse citations in free text. Accepted forms:
//
//	2:255   (2:255)   [2:255]   2:1-5   (2:1–5)
//
// The pattern is deliberately permissive: surrounding brackets are optional
// and both hyphen and en-dash range separators occur in model output.
// Numeric bounds are enforced after matching, not in the pattern.
var citationRe = regexp.MustCompile(`[\[(]?\s*(\d{1,3})\s*:\s*(\d{1,3})(?:\s*[-–]\s*(\d{1,3}))?\s*[\])]?`)

// paragraphSplitRe splits text on blank lines (a newline, optional
// whitespace, another newline).
var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

// ParseCitations extracts all verse citations from text, in order of
// appearance. Ranges expand to one reference per ayah, with the range end
// clamped to MaxAyah. Tokens outside structural bounds are dropped
// silently — a malformed citation is not an error, it is simply not a
// citation. Duplicates are preserved; callers dedupe when identity matters.
func ParseCitations(text string) []VerseRef {
	if text == "" {
		return nil
	}

	var refs []VerseRef
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		surah, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		start, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		first := VerseRef{Surah: surah, Ayah: start}
		if !first.Valid() {
			continue
		}

		end := start
		if m[3] != "" {
			if n, err := strconv.Atoi(m[3]); err == nil && n > start {
				end = n
			}
		}
		if end > MaxAyah {
			end = MaxAyah
		}

		for ayah := start; ayah <= end; ayah++ {
			refs = append(refs, VerseRef{Surah: surah, Ayah: ayah})
		}
	}
	return refs
}

// ParagraphHasCitation reports whether the paragraph contains at least one
// structurally valid citation. Agrees with ParseCitations by construction.
func ParagraphHasCitation(paragraph string) bool {
	return len(ParseCitations(paragraph)) > 0
}

// SplitParagraphs splits text into paragraphs on blank lines. Leading and
// trailing whitespace is trimmed from each paragraph; empty paragraphs are
// dropped.
func SplitParagraphs(text string) []string {
	var out []string
	for _, p := range paragraphSplitRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateAgainstContext returns the citations that do not appear in the
// given context references. An empty result means every citation is
// grounded in context. The check is advisory: callers decide whether an
// ungrounded citation invalidates an answer or merely flags it.
func ValidateAgainstContext(citations, context []VerseRef) []VerseRef {
	if len(citations) == 0 {
		return nil
	}
	known := make(map[VerseRef]struct{}, len(context))
	for _, r := range context {
		known[r] = struct{}{}
	}
	var missing []VerseRef
	for _, c := range DedupeRefs(citations) {
		if _, ok := known[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
