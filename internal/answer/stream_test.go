package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/log"
	"github.com/furqanlabs/furqan/internal/quran"
)

// chunkStreamer replays canned chunks through the callback.
type chunkStreamer struct {
	chunks  []string
	err     error
	lastReq llm.Request
	called  bool
}

func (c *chunkStreamer) Stream(ctx context.Context, req llm.Request, fn func(context.Context, string) error) (string, error) {
	c.called = true
	c.lastReq = req
	var b strings.Builder
	for _, chunk := range c.chunks {
		if err := fn(ctx, chunk); err != nil {
			return "", err
		}
		b.WriteString(chunk)
	}
	if c.err != nil {
		return "", c.err
	}
	return b.String(), nil
}

func newTestStreamer(t *testing.T, c streamCompleter) *Streamer {
	t.Helper()
	s, err := NewStreamer(c, 2048, log.NewNop())
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	return s
}

func TestStreamEventOrderAndFullText(t *testing.T) {
	c := &chunkStreamer{chunks: []string{"Patience is ", "commanded ", "(2:153)."}}
	s := newTestStreamer(t, c)

	var events []Event
	err := s.Stream(context.Background(), "patience?", passageFixture(), nil, func(e Event) error {
		events = append(events, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if events[0].Type != EventContext {
		t.Fatalf("first event = %s, want context", events[0].Type)
	}
	if len(events[0].Passages) != 2 {
		t.Errorf("context passages = %d, want 2", len(events[0].Passages))
	}
	last := events[len(events)-1]
	if last.Type != EventDone || last.Done == nil {
		t.Fatalf("last event = %s, want done with payload", last.Type)
	}

	var concat strings.Builder
	for _, e := range events[1 : len(events)-1] {
		if e.Type != EventText {
			t.Fatalf("middle event = %s, want text", e.Type)
		}
		concat.WriteString(e.Text)
	}
	if last.Done.FullText != concat.String() {
		t.Errorf("FullText = %q, want the concatenation of text events %q", last.Done.FullText, concat.String())
	}

	want := []quran.VerseRef{{Surah: 2, Ayah: 153}}
	if len(last.Done.Citations) != 1 || last.Done.Citations[0] != want[0] {
		t.Errorf("citations = %v, want %v", last.Done.Citations, want)
	}
	if !strings.Contains(last.Done.FullText, explorerHint) {
		t.Error("cited stream should append the explorer hint")
	}
}

func TestStreamUncitedAnswerOmitsHint(t *testing.T) {
	c := &chunkStreamer{chunks: []string{"Patience is a virtue."}}
	s := newTestStreamer(t, c)

	var events []Event
	if err := s.Stream(context.Background(), "q", passageFixture(), nil, func(e Event) error {
		events = append(events, e)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	done := events[len(events)-1].Done
	if strings.Contains(done.FullText, explorerHint) {
		t.Error("uncited stream must not append the explorer hint")
	}
	if len(done.Citations) != 0 {
		t.Errorf("citations = %v, want none", done.Citations)
	}
}

func TestStreamEmptyContextSkipsModel(t *testing.T) {
	c := &chunkStreamer{}
	s := newTestStreamer(t, c)

	var events []Event
	if err := s.Stream(context.Background(), "q", nil, nil, func(e Event) error {
		events = append(events, e)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if c.called {
		t.Error("empty context must not call the model")
	}
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	if len(events) != 3 || types[0] != EventContext || types[1] != EventText || types[2] != EventDone {
		t.Fatalf("events = %v, want [context text done]", types)
	}
	if events[1].Text != emptyContextAnswer {
		t.Errorf("text = %q, want fixed no-verses response", events[1].Text)
	}
	if events[2].Done.FullText != emptyContextAnswer {
		t.Errorf("FullText = %q, want fixed no-verses response", events[2].Done.FullText)
	}
	if events[2].Done.Uncertainty != emptyContextUncertainty {
		t.Errorf("uncertainty = %q, no-verses done event must carry the fixed note", events[2].Done.Uncertainty)
	}
}

func TestStreamModelErrorReturned(t *testing.T) {
	c := &chunkStreamer{chunks: []string{"partial "}, err: errors.New("model unavailable")}
	s := newTestStreamer(t, c)

	var events []Event
	err := s.Stream(context.Background(), "q", passageFixture(), nil, func(e Event) error {
		events = append(events, e)
		return nil
	})
	if err == nil {
		t.Fatal("Stream() should surface the model error")
	}
	for _, e := range events {
		if e.Type == EventDone {
			t.Fatal("no done event may follow a model failure")
		}
	}
}

func TestStreamEmitErrorAborts(t *testing.T) {
	c := &chunkStreamer{chunks: []string{"a", "b", "c"}}
	s := newTestStreamer(t, c)

	emitted := 0
	sentinel := errors.New("client gone")
	err := s.Stream(context.Background(), "q", passageFixture(), nil, func(e Event) error {
		emitted++
		if emitted == 2 {
			return sentinel
		}
		return nil
	})
	if err == nil {
		t.Fatal("Stream() should propagate the emit error")
	}
	if emitted != 2 {
		t.Errorf("emit calls = %d, want abort after the failing emit", emitted)
	}
}

func TestStreamCancellationStopsChunks(t *testing.T) {
	c := &chunkStreamer{chunks: []string{"a", "b", "c"}}
	s := newTestStreamer(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	emitted := 0
	err := s.Stream(ctx, "q", passageFixture(), nil, func(e Event) error {
		if e.Type == EventText {
			emitted++
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if emitted != 1 {
		t.Errorf("text events = %d, cancellation must stop further chunks", emitted)
	}
}

func TestStreamPromptCarriesContext(t *testing.T) {
	c := &chunkStreamer{chunks: []string{"ok"}}
	s := newTestStreamer(t, c)

	if err := s.Stream(context.Background(), "why patience?", passageFixture(), nil, func(Event) error { return nil }); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !strings.Contains(c.lastReq.Prompt, "seek help through patience") {
		t.Error("prompt should embed the formatted passages")
	}
	if !strings.Contains(c.lastReq.Prompt, "why patience?") {
		t.Error("prompt should embed the question")
	}
	if c.lastReq.System != systemPrompt {
		t.Error("stream should use the shared system prompt")
	}
}
