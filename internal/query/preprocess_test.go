package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/log"
)

func TestExpandShortQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare topic expanded",
			in:   "patience",
			want: "What does the Quran say about patience?",
		},
		{
			name: "multi word topic expanded",
			in:   "marriage rules",
			want: "What does the Quran say about marriage rules?",
		},
		{
			name: "six words still expanded",
			in:   "the rights of orphans and widows",
			want: "What does the Quran say about the rights of orphans and widows?",
		},
		{
			name: "seven words pass through",
			in:   "the many rights of orphans and widows today",
			want: "the many rights of orphans and widows today",
		},
		{
			name: "question mark passes through",
			in:   "patience?",
			want: "patience?",
		},
		{
			name: "question word passes through",
			in:   "what is patience",
			want: "what is patience",
		},
		{
			name: "capitalized question word passes through",
			in:   "How to pray",
			want: "How to pray",
		},
		{
			name: "domain term passes through",
			in:   "quran on charity",
			want: "quran on charity",
		},
		{
			name: "surah mention passes through",
			in:   "surah yasin meaning",
			want: "surah yasin meaning",
		},
		{
			name: "empty passes through",
			in:   "",
			want: "",
		},
		{
			name: "whitespace only passes through",
			in:   "   ",
			want: "   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandShortQuery(tt.in); got != tt.want {
				t.Errorf("ExpandShortQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// fakeCompleter returns a canned response or error and records calls.
type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastReq  llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func TestRewrite(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "What does the Quran say about fasting?"},
		{Role: llm.RoleAssistant, Content: "Fasting is prescribed in (2:183)."},
	}

	tests := []struct {
		name     string
		query    string
		history  []llm.Message
		response string
		err      error
		want     string
		wantCall bool
	}{
		{
			name:     "successful rewrite",
			query:    "what about exemptions?",
			history:  history,
			response: "What exemptions from fasting does the Quran allow?",
			want:     "What exemptions from fasting does the Quran allow?",
			wantCall: true,
		},
		{
			name:    "empty history skips model",
			query:   "what about exemptions?",
			history: nil,
			want:    "what about exemptions?",
		},
		{
			name:    "long query skips model",
			query:   "this question is already fully self contained and spelled out at such length that no history context could possibly be needed to interpret it",
			history: history,
			want:    "this question is already fully self contained and spelled out at such length that no history context could possibly be needed to interpret it",
		},
		{
			name:     "model error falls back",
			query:    "what about exemptions?",
			history:  history,
			err:      errors.New("upstream unavailable"),
			want:     "what about exemptions?",
			wantCall: true,
		},
		{
			name:     "degenerate output falls back",
			query:    "what about exemptions?",
			history:  history,
			response: "ok",
			want:     "what about exemptions?",
			wantCall: true,
		},
		{
			name:     "whitespace output falls back",
			query:    "what about exemptions?",
			history:  history,
			response: "   ",
			want:     "what about exemptions?",
			wantCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompleter{response: tt.response, err: tt.err}
			r := NewRewriter(fake, log.NewNop())

			got := r.Rewrite(context.Background(), tt.query, tt.history)
			if got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
			if tt.wantCall != (fake.calls > 0) {
				t.Errorf("model called = %v, want %v", fake.calls > 0, tt.wantCall)
			}
			if fake.calls > 0 && !fake.lastReq.Fast {
				t.Error("rewrite should use the fast model")
			}
		})
	}
}

func TestRewriteUsesRecentHistoryOnly(t *testing.T) {
	history := make([]llm.Message, 0, 8)
	for i := 0; i < 8; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: "turn"})
	}
	history[0].Content = "VERY_OLD_TURN"
	history[7].Content = "RECENT_TURN"

	fake := &fakeCompleter{response: "What does the Quran say about patience in hardship?"}
	r := NewRewriter(fake, log.NewNop())
	r.Rewrite(context.Background(), "and then?", history)

	prompt := fake.lastReq.Prompt
	if !strings.Contains(prompt, "RECENT_TURN") {
		t.Error("prompt missing recent history turn")
	}
	if strings.Contains(prompt, "VERY_OLD_TURN") {
		t.Error("prompt should not include history beyond the last 4 turns")
	}
}

func TestRewriteTruncatesTurnsOnRuneBoundaries(t *testing.T) {
	// 400 Arabic runes: byte-index truncation would land mid-rune and
	// feed invalid UTF-8 into the prompt.
	long := strings.Repeat("ص", 400)
	history := []llm.Message{
		{Role: llm.RoleUser, Content: long},
		{Role: llm.RoleAssistant, Content: "short answer"},
	}

	fake := &fakeCompleter{response: "What does the Quran say about patience in hardship?"}
	r := NewRewriter(fake, log.NewNop())
	r.Rewrite(context.Background(), "and then?", history)

	prompt := fake.lastReq.Prompt
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains invalid UTF-8 after truncation")
	}
	if !strings.Contains(prompt, strings.Repeat("ص", 300)+"...") {
		t.Error("long turn should be cut to 300 runes with an ellipsis")
	}
	if strings.Contains(prompt, strings.Repeat("ص", 301)) {
		t.Error("turn exceeds the truncation limit")
	}
}
