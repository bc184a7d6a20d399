package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/verse"
)

// Reranker reorders vector-search candidates by query relevance.
// Implementations must not drop candidates; ordering is their only job.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []verse.Match) ([]verse.Match, error)
}

// Pointwise scoring parameters.
const (
	// neutralScore is assigned when an individual scoring call fails, so a
	// flaky model ranks a candidate neither up nor down.
	neutralScore = 5

	minScore = 1
	maxScore = 10

	// rerankConcurrency bounds parallel scoring calls.
	rerankConcurrency = 8
)

const rerankPrompt = `Rate how relevant this Quran verse is to the question on a scale of 1 to 10, where 10 means it directly answers the question and 1 means it is unrelated.

Question: %s

Verse (%s): %s

Respond with a single integer from 1 to 10 and nothing else.`

// scoreRe pulls the first integer out of model output, tolerating prose
// like "Score: 8".
var scoreRe = regexp.MustCompile(`\d+`)

// completer is the single model operation the reranker needs.
type completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// LLMReranker scores each candidate independently on the fast model and
// stable-sorts by score descending, so equal scores keep vector order.
type LLMReranker struct {
	llm    completer
	logger *slog.Logger
}

// NewLLMReranker creates an LLMReranker.
func NewLLMReranker(c completer, logger *slog.Logger) (*LLMReranker, error) {
	if c == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMReranker{llm: c, logger: logger}, nil
}

// Rerank scores candidates in parallel. Individual scoring failures fall
// back to the neutral score; Rerank itself only fails when the context is
// canceled before scoring completes.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []verse.Match) ([]verse.Match, error) {
	if len(candidates) < 2 {
		return candidates, nil
	}

	scores := make([]int, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rerankConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = r.score(gctx, query, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}

	// Stable sort of indices keeps vector order among equal scores.
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	out := make([]verse.Match, len(candidates))
	for i, j := range idx {
		out[i] = candidates[j]
	}
	return out, nil
}

// score rates one candidate, falling back to neutralScore on any failure.
func (r *LLMReranker) score(ctx context.Context, query string, c verse.Match) int {
	resp, err := r.llm.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(rerankPrompt, query, c.Ref.Key(), c.Content),
		Temperature: 0.1,
		MaxTokens:   16,
		Fast:        true,
	})
	if err != nil {
		r.logger.Debug("rerank scoring failed, using neutral score", "ref", c.Ref.Key(), "error", err)
		return neutralScore
	}

	m := scoreRe.FindString(resp)
	if m == "" {
		r.logger.Debug("rerank score unparseable, using neutral score", "ref", c.Ref.Key(), "response", resp)
		return neutralScore
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < minScore || n > maxScore {
		return neutralScore
	}
	return n
}
