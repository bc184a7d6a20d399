// Package answer turns retrieved passages into cited answers: a two-pass
// synchronous generator and a single-pass streamer, both built on the same
// prompt contract and citation parsing.
package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/quran"
	"github.com/furqanlabs/furqan/internal/retrieval"
)

// Sampling temperatures. Generation runs warm enough to write readable
// prose; verification runs near-deterministic because it edits rather
// than composes.
const (
	generationTemperature   = 0.3
	verificationTemperature = 0.1
)

// emptyContextAnswer is returned without any model call when retrieval
// found nothing. Wording is fixed so clients can rely on it, and the
// response always carries emptyContextUncertainty so "nothing found" is
// distinguishable from a confident answer even when clients only look at
// the uncertainty field.
const (
	emptyContextAnswer = "I could not find relevant verses for this question. " +
		"Try rephrasing it, or ask about a specific topic, surah, or ayah."
	emptyContextUncertainty = "No verses relevant to this question were found in the corpus."
)

// explorerHint is appended to answers that carry citations, pointing users
// at the verse explorer.
const explorerHint = "\n\n*Tap any citation to open the verse in the explorer and read it in full context.*"

// completer is the single model operation the generator needs.
type completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Generator produces cited answers from retrieved passages.
type Generator struct {
	llm       completer
	maxTokens int32
	logger    *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(c completer, maxTokens int, logger *slog.Logger) (*Generator, error) {
	if c == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: c, maxTokens: int32(maxTokens), logger: logger}, nil
}

// Generate answers a question from the given passages. Empty passages
// short-circuit to the fixed no-verses response without touching the
// model. Otherwise: generation pass, parse, and — when the draft has no
// citations or leaves a paragraph uncited — one verification pass whose
// parsed result replaces the draft wholesale. A verification failure
// keeps the draft; a generation failure is the caller's problem.
func (g *Generator) Generate(ctx context.Context, question string, passages []retrieval.PairedVerse, history []llm.Message) (*Response, error) {
	if len(passages) == 0 {
		return &Response{AnswerMarkdown: emptyContextAnswer, Uncertainty: emptyContextUncertainty}, nil
	}

	contextBlock := retrieval.FormatContext(passages)
	contextRefs := retrieval.ContextRefs(passages)

	raw, err := g.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		History:     history,
		Prompt:      fmt.Sprintf(generationPrompt, contextBlock, question),
		Temperature: generationTemperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	resp := parseModelResponse(raw, contextRefs)

	if needsVerification(resp) {
		verified, verifyErr := g.verify(ctx, question, contextBlock, contextRefs, resp)
		if verifyErr != nil {
			g.logger.Warn("verification pass failed, keeping draft", "error", verifyErr)
		} else {
			resp = verified
		}
	}

	if len(resp.Citations) > 0 {
		resp.AnswerMarkdown += explorerHint
	}
	return resp, nil
}

// verify runs the single verification pass over a draft.
func (g *Generator) verify(ctx context.Context, question, contextBlock string, contextRefs []quran.VerseRef, draft *Response) (*Response, error) {
	raw, err := g.llm.Complete(ctx, llm.Request{
		System:      verificationSystemPrompt,
		Prompt:      fmt.Sprintf(verificationPrompt, contextBlock, question, draft.AnswerMarkdown),
		Temperature: verificationTemperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("verifying answer: %w", err)
	}
	return parseModelResponse(raw, contextRefs), nil
}

// needsVerification flags drafts with zero citations or any uncited
// paragraph. At most one verification runs per request regardless of the
// verified result's own gaps.
func needsVerification(resp *Response) bool {
	if len(resp.Citations) == 0 {
		return true
	}
	for _, p := range quran.SplitParagraphs(resp.AnswerMarkdown) {
		if !quran.ParagraphHasCitation(p) {
			return true
		}
	}
	return false
}
