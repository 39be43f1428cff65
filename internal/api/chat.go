package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/CodeHalwell/digital-cv/internal/completion"
)

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Cumulative response text so far
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred before or during streaming
)

// maxRequestBody bounds the chat request size.
const maxRequestBody = 1 << 20

// ChatRequest is the POST /api/v1/chat/stream request body.
type ChatRequest struct {
	Message string        `json:"message"`
	History []HistoryTurn `json:"history,omitempty"`
}

// HistoryTurn is one prior exchange entry supplied by the client.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChunkPayload is the SSE data payload for streaming text.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes.
type DonePayload struct {
	Response string `json:"response"`
}

// ErrorPayload is the SSE data payload when a request fails.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatHandler struct {
	chatter Chatter
	logger  *slog.Logger
}

// stream handles SSE streaming chat requests. Each chunk event carries the
// cumulative assistant text, so a client renders the latest event as-is.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "INVALID_REQUEST",
			Message: "Invalid request body",
		})
		return
	}
	if req.Message == "" {
		_ = writeEvent(w, flusher, EventError, ErrorPayload{
			Code:    "MISSING_MESSAGE",
			Message: "message is required",
		})
		return
	}

	history := make([]completion.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, completion.Message{Role: turn.Role, Content: turn.Content})
	}

	ctx := r.Context()
	h.logger.Debug("chat stream started", "request_id", requestIDFromContext(ctx))

	var final string
	for text := range h.chatter.Chat(ctx, req.Message, history) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected", "request_id", requestIDFromContext(ctx))
			return
		default:
		}

		final = text
		if err := writeEvent(w, flusher, EventChunk, ChunkPayload{Text: text}); err != nil {
			h.logger.Debug("failed to write chunk, client likely gone", "error", err)
			return
		}
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{Response: final})
}

// writeEvent writes a single SSE event with a JSON data payload and flushes.
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
