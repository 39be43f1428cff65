// Package completion defines the language-model completion capability used by
// the chat orchestrator and the guardrail classifier.
//
// The package provides:
//   - Wire-level message and tool-call types shared across the application
//   - Streamer / Completer / Embedder interfaces consumed by higher layers
//   - An OpenAI-backed Client implementing all three (see openai.go)
//   - An Accumulator that rebuilds tool-call requests from streamed deltas
//
// Design Philosophy:
//   - Consumers depend on the small interfaces, never on Client directly
//   - Streaming is exposed as an iterator (iter.Seq2) so callers can stop
//     consuming at any point and upstream reads halt promptly
package completion

import (
	"context"
	"iter"
)

// Message roles. These match the chat-completions wire protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FinishReasonToolCalls is the turn-finish reason indicating the model
// requested one or more tool calls and expects results before continuing.
const FinishReasonToolCalls = "tool_calls"

// Message is a single conversation message.
//
// Invariant: a RoleTool message carries a ToolCallID matching the ID of a
// ToolCallRequest on the preceding RoleAssistant message.
type Message struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// SystemMessage returns a RoleSystem message with the given content.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a RoleUser message with the given content.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolMessage returns a RoleTool message carrying a serialized tool result
// for the originating call ID.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolCallRequest is a structured request, emitted by the model, to invoke a
// named tool. Arguments is a JSON-encoded object built from streamed
// fragments; it is not guaranteed to be valid JSON.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema declares a callable tool to the model.
// Parameters is a JSON Schema object describing the accepted arguments.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCallDelta is a partial tool-call fragment from the delta stream.
// Deltas for the same call share an Index; ID and Name typically arrive on
// the first fragment, Arguments accumulates across fragments.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Delta is a single event from the streaming completion capability.
// Exactly one of Content, ToolCall, or FinishReason is meaningful per event;
// a non-empty FinishReason terminates the model turn.
type Delta struct {
	Content      string
	ToolCall     *ToolCallDelta
	FinishReason string
}

// Streamer produces a streamed model turn for the given message list and tool
// declarations. The returned sequence is finite and not restartable; callers
// that stop iterating release upstream resources.
type Streamer interface {
	StreamComplete(ctx context.Context, messages []Message, tools []ToolSchema) iter.Seq2[Delta, error]
}

// CompleteOptions configures a single non-streaming completion request.
type CompleteOptions struct {
	Model       string  // Model override; empty = client default
	Temperature float32 // Sampling temperature
	MaxTokens   int     // Response token cap; 0 = provider default
}

// Completer produces a single non-streamed completion. Used by the guardrail
// classifier, which needs a one-token verdict rather than a stream.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
}

// Embedder computes embedding vectors for the given texts, positionally
// aligned with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
