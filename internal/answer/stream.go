package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/quran"
	"github.com/furqanlabs/furqan/internal/retrieval"
)

// EventType identifies a streaming event.
type EventType string

// Streaming event types, in emission order: one context event, zero or
// more text events, one done event. Errors surface as a returned error,
// not an event; the transport layer owns error framing.
const (
	EventContext EventType = "context"
	EventText    EventType = "text"
	EventDone    EventType = "done"
)

// Event is one streaming pipeline event. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type     EventType               `json:"type"`
	Passages []retrieval.PairedVerse `json:"passages,omitempty"`
	Text     string                  `json:"text,omitempty"`
	Done     *Done                   `json:"done,omitempty"`
}

// Done is the terminal event payload. FullText equals the concatenation
// of all preceding text events; Citations are parsed from it. Uncertainty
// is set only for the fixed no-verses response; streamed answers carry
// their hedging inline.
type Done struct {
	FullText    string           `json:"full_text"`
	Citations   []quran.VerseRef `json:"citations"`
	Uncertainty string           `json:"uncertainty,omitempty"`
}

// streamCompleter is the streaming model operation the streamer needs.
type streamCompleter interface {
	Stream(ctx context.Context, req llm.Request, fn func(context.Context, string) error) (string, error)
}

// Streamer produces incrementally delivered answers. Unlike the
// synchronous Generator there is no verification pass: text already shown
// to the user cannot be retracted, so the stream is single-pass and
// citations are recovered from the final text.
type Streamer struct {
	llm       streamCompleter
	maxTokens int32
	logger    *slog.Logger
}

// NewStreamer creates a Streamer.
func NewStreamer(c streamCompleter, maxTokens int, logger *slog.Logger) (*Streamer, error) {
	if c == nil {
		return nil, fmt.Errorf("stream completer is required")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{llm: c, maxTokens: int32(maxTokens), logger: logger}, nil
}

// Stream answers a question, pushing events through emit. emit returning
// an error aborts the stream (typically a closed connection); a model
// failure after the context event is returned to the caller, which owns
// error framing. Context cancellation propagates into the model call.
func (s *Streamer) Stream(ctx context.Context, question string, passages []retrieval.PairedVerse, history []llm.Message, emit func(Event) error) error {
	if err := emit(Event{Type: EventContext, Passages: passages}); err != nil {
		return err
	}

	if len(passages) == 0 {
		if err := emit(Event{Type: EventText, Text: emptyContextAnswer}); err != nil {
			return err
		}
		return emit(Event{Type: EventDone, Done: &Done{FullText: emptyContextAnswer, Uncertainty: emptyContextUncertainty}})
	}

	full, err := s.llm.Stream(ctx, llm.Request{
		System:      systemPrompt,
		History:     history,
		Prompt:      fmt.Sprintf(streamPrompt, retrieval.FormatContext(passages), question),
		Temperature: generationTemperature,
		MaxTokens:   s.maxTokens,
	}, func(cbCtx context.Context, chunk string) error {
		if cbErr := cbCtx.Err(); cbErr != nil {
			return cbErr
		}
		return emit(Event{Type: EventText, Text: chunk})
	})
	if err != nil {
		return fmt.Errorf("streaming answer: %w", err)
	}

	citations := quran.DedupeRefs(quran.ParseCitations(full))
	if len(citations) > 0 {
		if err := emit(Event{Type: EventText, Text: explorerHint}); err != nil {
			return err
		}
		full += explorerHint
	}

	return emit(Event{Type: EventDone, Done: &Done{FullText: full, Citations: citations}})
}
