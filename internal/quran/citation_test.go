package quran

import (
	"reflect"
	"testing"
)

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []VerseRef
	}{
		{
			name: "bare citation",
			text: "patience is commanded 2:153 in the text",
			want: []VerseRef{{Surah: 2, Ayah: 153}},
		},
		{
			name: "parenthesized citation",
			text: "Allah is with the patient (2:153).",
			want: []VerseRef{{Surah: 2, Ayah: 153}},
		},
		{
			name: "bracketed citation",
			text: "see [24:35] for the Light verse",
			want: []VerseRef{{Surah: 24, Ayah: 35}},
		},
		{
			name: "range expansion",
			text: "the opening (1:1-3) praises Allah",
			want: []VerseRef{
				{Surah: 1, Ayah: 1},
				{Surah: 1, Ayah: 2},
				{Surah: 1, Ayah: 3},
			},
		},
		{
			name: "en dash range",
			text: "(2:1–3)",
			want: []VerseRef{
				{Surah: 2, Ayah: 1},
				{Surah: 2, Ayah: 2},
				{Surah: 2, Ayah: 3},
			},
		},
		{
			name: "range end clamped to max ayah",
			text: "(2:284-999)",
			want: []VerseRef{
				{Surah: 2, Ayah: 284},
				{Surah: 2, Ayah: 285},
				{Surah: 2, Ayah: 286},
			},
		},
		{
			name: "surah out of range dropped",
			text: "(115:1) is not a surah",
			want: nil,
		},
		{
			name: "ayah out of range dropped",
			text: "(2:287) does not exist",
			want: nil,
		},
		{
			name: "zero values dropped",
			text: "(0:5) and (5:0)",
			want: nil,
		},
		{
			name: "inverted range treated as single",
			text: "(2:10-5)",
			want: []VerseRef{{Surah: 2, Ayah: 10}},
		},
		{
			name: "multiple citations preserve order",
			text: "First (3:5), then (2:255), then (3:5) again.",
			want: []VerseRef{
				{Surah: 3, Ayah: 5},
				{Surah: 2, Ayah: 255},
				{Surah: 3, Ayah: 5},
			},
		},
		{
			name: "spacing inside citation",
			text: "( 2 : 255 )",
			want: []VerseRef{{Surah: 2, Ayah: 255}},
		},
		{
			name: "no citations",
			text: "nothing to see here",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCitations(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCitations(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseCitationsRoundTrip(t *testing.T) {
	// Any valid reference rendered via String() must parse back to itself.
	refs := []VerseRef{
		{Surah: 1, Ayah: 1},
		{Surah: 2, Ayah: 255},
		{Surah: 114, Ayah: 6},
		{Surah: 2, Ayah: 286},
	}
	for _, r := range refs {
		got := ParseCitations("prefix " + r.String() + " suffix")
		if len(got) != 1 || got[0] != r {
			t.Errorf("round trip for %v: got %v", r, got)
		}
	}
}

func TestParagraphHasCitation(t *testing.T) {
	tests := []struct {
		name      string
		paragraph string
		want      bool
	}{
		{"with citation", "Patience is rewarded (2:153).", true},
		{"without citation", "Patience is rewarded.", false},
		{"invalid citation only", "see (115:1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParagraphHasCitation(tt.paragraph); got != tt.want {
				t.Errorf("ParagraphHasCitation(%q) = %v, want %v", tt.paragraph, got, tt.want)
			}
			// Detector must agree with the parser on every input.
			if got := len(ParseCitations(tt.paragraph)) > 0; got != tt.want {
				t.Errorf("parser disagreement on %q", tt.paragraph)
			}
		})
	}
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "blank line split",
			text: "first paragraph\n\nsecond paragraph",
			want: []string{"first paragraph", "second paragraph"},
		},
		{
			name: "whitespace between newlines",
			text: "a\n   \nb",
			want: []string{"a", "b"},
		},
		{
			name: "single newline does not split",
			text: "line one\nline two",
			want: []string{"line one\nline two"},
		},
		{
			name: "empty segments dropped",
			text: "\n\na\n\n\n\n",
			want: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitParagraphs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitParagraphs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidateAgainstContext(t *testing.T) {
	context := []VerseRef{
		{Surah: 2, Ayah: 153},
		{Surah: 2, Ayah: 154},
		{Surah: 3, Ayah: 200},
	}

	tests := []struct {
		name      string
		citations []VerseRef
		want      []VerseRef
	}{
		{
			name:      "all grounded",
			citations: []VerseRef{{Surah: 2, Ayah: 153}, {Surah: 3, Ayah: 200}},
			want:      nil,
		},
		{
			name:      "one ungrounded",
			citations: []VerseRef{{Surah: 2, Ayah: 153}, {Surah: 9, Ayah: 51}},
			want:      []VerseRef{{Surah: 9, Ayah: 51}},
		},
		{
			name:      "duplicates reported once",
			citations: []VerseRef{{Surah: 9, Ayah: 51}, {Surah: 9, Ayah: 51}},
			want:      []VerseRef{{Surah: 9, Ayah: 51}},
		},
		{
			name:      "no citations",
			citations: nil,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateAgainstContext(tt.citations, context)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateAgainstContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupeRefs(t *testing.T) {
	in := []VerseRef{
		{Surah: 2, Ayah: 255},
		{Surah: 1, Ayah: 1},
		{Surah: 2, Ayah: 255},
		{Surah: 1, Ayah: 1},
		{Surah: 3, Ayah: 5},
	}
	want := []VerseRef{
		{Surah: 2, Ayah: 255},
		{Surah: 1, Ayah: 1},
		{Surah: 3, Ayah: 5},
	}
	got := DedupeRefs(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeRefs() = %v, want %v", got, want)
	}
}

func TestVerseRefValid(t *testing.T) {
	tests := []struct {
		ref  VerseRef
		want bool
	}{
		{VerseRef{Surah: 1, Ayah: 1}, true},
		{VerseRef{Surah: 114, Ayah: 286}, true},
		{VerseRef{Surah: 0, Ayah: 1}, false},
		{VerseRef{Surah: 115, Ayah: 1}, false},
		{VerseRef{Surah: 1, Ayah: 0}, false},
		{VerseRef{Surah: 1, Ayah: 287}, false},
	}
	for _, tt := range tests {
		if got := tt.ref.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
