// Package llm wraps Genkit model and embedder access behind a small client
// used by the rest of the pipeline. Consumers depend on narrow interfaces
// they define themselves; this package provides the one concrete
// implementation backed by the Gemini models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

var (
	// ErrUpstream marks model-call failures (network, quota, provider).
	ErrUpstream = errors.New("llm upstream")

	// ErrEmptyResponse indicates the model returned no usable output.
	ErrEmptyResponse = errors.New("empty model response")
)

// Conversation roles accepted in request history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of caller-supplied conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	// System is an optional system instruction.
	System string
	// History is interleaved prior turns, oldest first.
	History []Message
	// Prompt is the final user turn.
	Prompt string
	// Temperature overrides the model default when > 0.
	Temperature float32
	// MaxTokens caps output length when > 0.
	MaxTokens int32
	// Fast routes the call to the fast model when true.
	Fast bool
}

// Config holds client construction parameters. Model names must be
// provider-qualified (e.g. "googleai/gemini-2.5-flash").
type Config struct {
	Model     string
	FastModel string
	// EmbedDimension is the requested embedding width.
	EmbedDimension int
}

// Client is the Genkit-backed model client.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates a Client. embedder may be nil only when Embed is never called.
func New(g *genkit.Genkit, embedder ai.Embedder, cfg Config, logger *slog.Logger) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.FastModel == "" {
		cfg.FastModel = cfg.Model
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{g: g, embedder: embedder, cfg: cfg, logger: logger}, nil
}

// Complete runs a completion and returns the full response text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := genkit.Generate(ctx, c.g, c.options(req)...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Stream runs a completion, invoking fn for each text fragment as it
// arrives, and returns the full concatenated text. fn returning an error
// aborts the stream; context cancellation propagates to the model call.
func (c *Client) Stream(ctx context.Context, req Request, fn func(context.Context, string) error) (string, error) {
	opts := c.options(req)
	opts = append(opts, ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
		if chunk == nil {
			return nil
		}
		for _, part := range chunk.Content {
			if part.Text == "" {
				continue
			}
			if err := fn(cbCtx, part.Text); err != nil {
				return err
			}
		}
		return nil
	}))

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Embed generates a vector embedding for the given text at the configured
// dimensionality.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not configured", ErrUpstream)
	}

	dim := int32(c.cfg.EmbedDimension)
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding text: %w", ErrUpstream, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: embedding", ErrEmptyResponse)
	}
	return resp.Embeddings[0].Embedding, nil
}

// options assembles genkit generate options from a Request.
func (c *Client) options(req Request) []ai.GenerateOption {
	msgs := make([]*ai.Message, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, ai.NewSystemMessage(ai.NewTextPart(req.System)))
	}
	for _, m := range req.History {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(req.Prompt)))

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}

	model := c.cfg.Model
	if req.Fast {
		model = c.cfg.FastModel
	}

	return []ai.GenerateOption{
		ai.WithModelName(model),
		ai.WithMessages(msgs...),
		ai.WithConfig(cfg),
	}
}
