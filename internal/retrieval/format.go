package retrieval

import (
	"fmt"
	"strings"
)

// FormatContext renders retrieved passages into the prompt block consumed
// by answer generation. The layout is stable: generation prompts instruct
// the model to cite by the surah/ayah shown here, so field order and
// labels are part of the pipeline contract.
func FormatContext(passages []PairedVerse) string {
	if len(passages) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] Surah %d, Ayah %d (relevance: %.0f%%)\n", i+1, p.Ref.Surah, p.Ref.Ayah, p.Similarity*100)
		if p.Arabic != "" {
			fmt.Fprintf(&b, "Arabic: %s\n", p.Arabic)
		}
		fmt.Fprintf(&b, "English: %s", p.English)
		if p.Theme != "" {
			fmt.Fprintf(&b, "\nTheme: %s", p.Theme)
		}
		if p.ContextSummary != "" {
			fmt.Fprintf(&b, "\nContext: %s", p.ContextSummary)
		}
	}
	return b.String()
}
