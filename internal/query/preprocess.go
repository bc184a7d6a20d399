// Package query prepares user questions for retrieval: a pure heuristic
// that pads terse topic-only queries, and an LLM rewrite that resolves
// follow-up questions against conversation history.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/furqanlabs/furqan/internal/llm"
)

// Expansion heuristic bounds.
const (
	maxShortQueryWords = 6
	maxRewriteQueryLen = 100
	rewriteHistoryTail = 4
	rewriteTurnMaxLen  = 300
)

// questionWords are leading tokens that mark a query as already
// question-phrased.
var questionWords = map[string]struct{}{
	"what": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"which": {}, "is": {}, "are": {}, "do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "should": {}, "would": {}, "will": {},
	"tell": {}, "explain": {}, "list": {},
}

// domainTerms mark a query as already domain-anchored.
var domainTerms = []string{
	"quran", "islam", "allah", "muslim", "ayah", "surah", "verse",
}

// ExpandShortQuery pads terse topic-style queries ("patience",
// "marriage rules") into a full retrieval question. Queries that are
// already question-phrased, domain-anchored, or longer than six words pass
// through unchanged. Pure function, no I/O.
func ExpandShortQuery(q string) string {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return q
	}

	words := strings.Fields(trimmed)
	if len(words) > maxShortQueryWords {
		return q
	}
	if strings.HasSuffix(trimmed, "?") {
		return q
	}

	first := strings.ToLower(strings.Trim(words[0], ".,!"))
	if _, ok := questionWords[first]; ok {
		return q
	}

	lower := strings.ToLower(trimmed)
	for _, term := range domainTerms {
		if strings.Contains(lower, term) {
			return q
		}
	}

	return "What does the Quran say about " + trimmed + "?"
}

// completer is the single model operation the rewriter needs.
type completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Rewriter resolves follow-up questions ("what about fasting?") into
// standalone queries using recent conversation history.
type Rewriter struct {
	llm    completer
	logger *slog.Logger
}

// NewRewriter creates a Rewriter.
func NewRewriter(c completer, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{llm: c, logger: logger}
}

const rewritePrompt = `Given the conversation below, rewrite the user's latest question as a single standalone question about the Quran that needs no prior context to understand. Keep it under 50 words. Return only the rewritten question, nothing else.

Conversation:
%s

Latest question: %s

Standalone question:`

// Rewrite returns a standalone form of query, or query itself when
// rewriting is unnecessary or fails. The rewrite is an optimization, never
// a hard dependency: any model failure or degenerate output falls back to
// the original query.
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []llm.Message) string {
	if len(history) == 0 || len(query) > maxRewriteQueryLen {
		return query
	}

	tail := history
	if len(tail) > rewriteHistoryTail {
		tail = tail[len(tail)-rewriteHistoryTail:]
	}

	var b strings.Builder
	for _, m := range tail {
		content := m.Content
		if runes := []rune(content); len(runes) > rewriteTurnMaxLen {
			content = string(runes[:rewriteTurnMaxLen]) + "..."
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}

	rewritten, err := r.llm.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(rewritePrompt, b.String(), query),
		Temperature: 0.2,
		MaxTokens:   256,
		Fast:        true,
	})
	if err != nil {
		r.logger.Warn("query rewrite failed, using original", "error", err)
		return query
	}

	rewritten = strings.TrimSpace(rewritten)
	if len(strings.Fields(rewritten)) < 3 {
		r.logger.Debug("query rewrite degenerate, using original", "rewritten", rewritten)
		return query
	}
	return rewritten
}
