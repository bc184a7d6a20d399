package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/furqanlabs/furqan/internal/answer"
	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/quran"
	"github.com/furqanlabs/furqan/internal/retrieval"
	"github.com/furqanlabs/furqan/internal/verse"
)

// Request-shape bounds at the HTTP boundary.
const (
	minMessageLen     = 3
	maxMessageLen     = 1000
	maxHistoryEntries = 10
	maxHistoryContent = 2000
	maxBodyBytes      = 1 << 20
)

// Pipeline collaborators, narrowed to what the handler calls so tests can
// substitute each stage independently.
type (
	rewriter interface {
		Rewrite(ctx context.Context, query string, history []llm.Message) string
	}
	retriever interface {
		Retrieve(ctx context.Context, query string) ([]retrieval.PairedVerse, error)
	}
	generator interface {
		Generate(ctx context.Context, question string, passages []retrieval.PairedVerse, history []llm.Message) (*answer.Response, error)
	}
	streamer interface {
		Stream(ctx context.Context, question string, passages []retrieval.PairedVerse, history []llm.Message, emit func(answer.Event) error) error
	}
)

// chatHandler orchestrates the question-answering pipeline behind the chat
// endpoints: sanitize input, rewrite follow-ups, retrieve passages, then
// generate (synchronous) or stream the answer.
type chatHandler struct {
	rewriter  rewriter
	retriever retriever
	generator generator
	streamer  streamer
	expand    func(string) string
	logger    *slog.Logger
}

// chatRequest is the request body shared by both chat endpoints.
type chatRequest struct {
	Message string         `json:"message"`
	History []historyEntry `json:"history,omitempty"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the synchronous endpoint's response body.
type chatResponse struct {
	Answer      string                  `json:"answer_markdown"`
	Citations   []quran.VerseRef        `json:"citations"`
	Uncertainty string                  `json:"uncertainty,omitempty"`
	Passages    []retrieval.PairedVerse `json:"passages"`
}

// validate checks the message bounds and history roles, and returns the
// sanitized history: last maxHistoryEntries entries, content truncated to
// maxHistoryContent runes.
func (req *chatRequest) validate() ([]llm.Message, error) {
	msg := strings.TrimSpace(req.Message)
	if utf8.RuneCountInString(msg) < minMessageLen {
		return nil, fmt.Errorf("message must be at least %d characters", minMessageLen)
	}
	if utf8.RuneCountInString(msg) > maxMessageLen {
		return nil, fmt.Errorf("message must be at most %d characters", maxMessageLen)
	}
	req.Message = msg

	entries := req.History
	if len(entries) > maxHistoryEntries {
		entries = entries[len(entries)-maxHistoryEntries:]
	}

	history := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		if e.Role != llm.RoleUser && e.Role != llm.RoleAssistant {
			return nil, fmt.Errorf("history role must be %q or %q", llm.RoleUser, llm.RoleAssistant)
		}
		content := e.Content
		if runes := []rune(content); len(runes) > maxHistoryContent {
			content = string(runes[:maxHistoryContent])
		}
		history = append(history, llm.Message{Role: e.Role, Content: content})
	}
	return history, nil
}

// prepare runs the shared pre-retrieval stages: follow-up rewrite against
// history, then short-query expansion for the retrieval embedding. The
// rewritten (unexpanded) question is what generation answers.
func (h *chatHandler) prepare(ctx context.Context, req *chatRequest, history []llm.Message) (question, retrievalQuery string) {
	question = h.rewriter.Rewrite(ctx, req.Message, history)
	retrievalQuery = h.expand(question)
	return question, retrievalQuery
}

// send handles POST /api/v1/chat: full pipeline, single JSON response.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}
	history, err := req.validate()
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), h.logger)
		return
	}

	ctx := r.Context()
	question, retrievalQuery := h.prepare(ctx, &req, history)

	passages, err := h.retriever.Retrieve(ctx, retrievalQuery)
	if err != nil {
		h.writeMappedError(ctx, w, err)
		return
	}

	resp, err := h.generator.Generate(ctx, question, passages, history)
	if err != nil {
		h.writeMappedError(ctx, w, err)
		return
	}

	citations := resp.Citations
	if citations == nil {
		citations = []quran.VerseRef{}
	}
	if passages == nil {
		passages = []retrieval.PairedVerse{}
	}
	WriteJSON(w, http.StatusOK, chatResponse{
		Answer:      resp.AnswerMarkdown,
		Citations:   citations,
		Uncertainty: resp.Uncertainty,
		Passages:    passages,
	}, h.logger)
}

// SSE event type emitted in place of done when the pipeline fails.
const eventError = "error"

// errorPayload is the SSE data payload when an error occurs.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// stream handles POST /api/v1/chat/stream: SSE events context, text*,
// then done or error. Validation failures are delivered as SSE error
// events since headers are committed before the body is read.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "invalid_body", Message: "invalid request body"})
		return
	}
	history, err := req.validate()
	if err != nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "invalid_request", Message: err.Error()})
		return
	}

	ctx := r.Context()
	question, retrievalQuery := h.prepare(ctx, &req, history)

	passages, err := h.retriever.Retrieve(ctx, retrievalQuery)
	if err != nil {
		h.writeStreamError(ctx, w, flusher, err)
		return
	}

	err = h.streamer.Stream(ctx, question, passages, history, func(e answer.Event) error {
		return writeEvent(w, flusher, string(e.Type), e)
	})
	if err != nil {
		h.writeStreamError(ctx, w, flusher, err)
	}
}

// mapError classifies a pipeline failure into the user-facing taxonomy.
// Raw error text never reaches the client; the caller should distinguish
// "nothing found" (not an error), "storage down", "model down", and
// "misconfigured" without learning internals.
func mapError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, verse.ErrStore):
		return http.StatusServiceUnavailable, "storage_unavailable", "verse storage is temporarily unavailable"
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, llm.ErrEmptyResponse):
		return http.StatusBadGateway, "model_unavailable", "the language model is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func (h *chatHandler) writeMappedError(ctx context.Context, w http.ResponseWriter, err error) {
	if ctx.Err() != nil {
		// Client gone; nothing useful to write.
		h.logger.Debug("request canceled", "error", err)
		return
	}
	status, code, message := mapError(err)
	h.logger.Error("chat pipeline failed", "error", err, "code", code)
	WriteError(w, status, code, message, h.logger)
}

func (h *chatHandler) writeStreamError(ctx context.Context, w io.Writer, f http.Flusher, err error) {
	if ctx.Err() != nil {
		h.logger.Debug("stream canceled", "error", err)
		return
	}
	_, code, message := mapError(err)
	h.logger.Error("chat stream failed", "error", err, "code", code)
	_ = writeEvent(w, f, eventError, errorPayload{Code: code, Message: message})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
