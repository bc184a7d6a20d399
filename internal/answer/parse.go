package answer

import (
	"encoding/json"
	"strings"

	"github.com/furqanlabs/furqan/internal/quran"
)

// Response is a finished answer. Citations are deduplicated and carry
// every verse referenced by the text, whether or not it was retrieved;
// Uncertainty is empty when the model was confident and the citations are
// grounded.
type Response struct {
	AnswerMarkdown string           `json:"answer_markdown"`
	Citations      []quran.VerseRef `json:"citations"`
	Uncertainty    string           `json:"uncertainty,omitempty"`
}

// Fixed advisory notes attached during parsing.
const (
	// fallbackUncertainty marks answers recovered from unstructured model
	// output.
	fallbackUncertainty = "This answer could not be fully structured; citations were recovered from the text and may be incomplete."

	// ungroundedUncertainty marks answers citing verses outside the
	// retrieved context.
	ungroundedUncertainty = "Some citations reference verses outside the retrieved passages; please verify them against the text."
)

// modelPayload mirrors the JSON envelope requested from the model. Unknown
// extra fields are tolerated; the known fields are what gets normalized.
type modelPayload struct {
	AnswerMarkdown string           `json:"answer_markdown"`
	Citations      []quran.VerseRef `json:"citations"`
	Uncertainty    string           `json:"uncertainty"`
}

// parseModelResponse converts raw model output into a Response. It never
// fails: structured output is normalized, and anything else falls open to
// the raw text with regex-recovered citations — a readable uncited answer
// beats an opaque error.
//
// Citations are the union of the structured array and the references
// parsed from the answer text, deduplicated in order of first appearance.
// Citations outside contextRefs set an advisory uncertainty note; they are
// not removed.
func parseModelResponse(raw string, contextRefs []quran.VerseRef) *Response {
	text := stripCodeFences(raw)

	var payload modelPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil || strings.TrimSpace(payload.AnswerMarkdown) == "" {
		answer := strings.TrimSpace(text)
		return &Response{
			AnswerMarkdown: answer,
			Citations:      quran.DedupeRefs(quran.ParseCitations(answer)),
			Uncertainty:    fallbackUncertainty,
		}
	}

	citations := make([]quran.VerseRef, 0, len(payload.Citations))
	for _, c := range payload.Citations {
		if c.Valid() {
			citations = append(citations, c)
		}
	}
	citations = append(citations, quran.ParseCitations(payload.AnswerMarkdown)...)
	citations = quran.DedupeRefs(citations)

	resp := &Response{
		AnswerMarkdown: strings.TrimSpace(payload.AnswerMarkdown),
		Citations:      citations,
		Uncertainty:    strings.TrimSpace(payload.Uncertainty),
	}

	if resp.Uncertainty == "" && len(contextRefs) > 0 {
		if missing := quran.ValidateAgainstContext(citations, contextRefs); len(missing) > 0 {
			resp.Uncertainty = ungroundedUncertainty
		}
	}

	return resp
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
