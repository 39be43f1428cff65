// Package chat implements the streaming conversation orchestrator: it
// assembles the message list for a turn, applies the guardrail, streams the
// model's response, executes requested tool calls, and loops until the model
// finishes without requesting tools.
package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"

	"github.com/CodeHalwell/digital-cv/internal/completion"
)

// defaultMaxToolRounds bounds the tool-call loop so a misbehaving model
// cannot keep a turn alive indefinitely.
const defaultMaxToolRounds = 8

// failureMessage is the only text shown to the visitor when a completion
// call fails mid-turn. Internal error detail stays in the logs.
const failureMessage = "I'm sorry, something went wrong while generating a response. Please try again."

// exhaustedMessage is emitted when the tool-call round cap is reached
// without a final answer.
const exhaustedMessage = "I'm sorry, I wasn't able to finish answering that. Please try rephrasing your question."

// Guardrail screens messages before they reach the model.
type Guardrail interface {
	Allow(ctx context.Context, message string) bool
	RejectionMessage() string
}

// Persona supplies the prompt context for a turn.
type Persona interface {
	SystemPrompt() string
	BuildRetrievalContext(ctx context.Context, message string, history []completion.Message) string
	GroundingMessage(retrievalContext string) string
}

// ToolRunner exposes the tool schemas and executes accumulated tool calls.
type ToolRunner interface {
	Schemas() []completion.ToolSchema
	Execute(ctx context.Context, calls []completion.ToolCallRequest) []completion.Message
}

// Config contains all required parameters for an Orchestrator.
type Config struct {
	Streamer      completion.Streamer
	Guardrail     Guardrail
	Persona       Persona
	Tools         ToolRunner
	Transcript    Transcript // Optional, defaults to NopTranscript
	MaxToolRounds int        // Optional, defaults to defaultMaxToolRounds
	Logger        *slog.Logger
}

func (cfg Config) validate() error {
	if cfg.Streamer == nil {
		return errors.New("streamer is required")
	}
	if cfg.Guardrail == nil {
		return errors.New("guardrail is required")
	}
	if cfg.Persona == nil {
		return errors.New("persona is required")
	}
	if cfg.Tools == nil {
		return errors.New("tool runner is required")
	}
	return nil
}

// Orchestrator drives one conversation turn at a time. It holds no per-turn
// state, so a single instance serves concurrent sessions.
type Orchestrator struct {
	streamer   completion.Streamer
	guardrail  Guardrail
	persona    Persona
	tools      ToolRunner
	transcript Transcript
	maxRounds  int
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	transcript := cfg.Transcript
	if transcript == nil {
		transcript = NopTranscript{}
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		streamer:   cfg.Streamer,
		guardrail:  cfg.Guardrail,
		persona:    cfg.Persona,
		tools:      cfg.Tools,
		transcript: transcript,
		maxRounds:  maxRounds,
		logger:     logger,
	}, nil
}

// Sanitize reduces caller-supplied history to plain user/assistant
// role-content pairs. Any other role, including tool traffic from a previous
// turn, is dropped. Sanitizing an already-sanitized list yields an equal list.
func Sanitize(history []completion.Message) []completion.Message {
	sanitized := make([]completion.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role != completion.RoleUser && msg.Role != completion.RoleAssistant {
			continue
		}
		sanitized = append(sanitized, completion.Message{Role: msg.Role, Content: msg.Content})
	}
	return sanitized
}

// Chat runs one conversation turn and returns the response as a sequence of
// cumulative assistant strings: each emission extends the previous one, so a
// consumer can re-render the latest value directly. Stopping consumption
// stops the turn; no further tool calls are executed once the consumer
// breaks out of the sequence.
func (o *Orchestrator) Chat(ctx context.Context, message string, history []completion.Message) iter.Seq[string] {
	return func(yield func(string) bool) {
		o.logger.Info("user message", "message", message)

		sanitized := Sanitize(history)

		if !o.guardrail.Allow(ctx, message) {
			o.logger.Info("message rejected by guardrail")
			yield(o.guardrail.RejectionMessage())
			return
		}

		retrievalContext := o.persona.BuildRetrievalContext(ctx, message, sanitized)
		o.logger.Debug("retrieval context built", "length", len(retrievalContext))

		messages := make([]completion.Message, 0, len(sanitized)+3)
		messages = append(messages, completion.SystemMessage(o.persona.SystemPrompt()))
		if retrievalContext != "" {
			messages = append(messages, completion.SystemMessage(o.persona.GroundingMessage(retrievalContext)))
		}
		messages = append(messages, sanitized...)
		messages = append(messages, completion.UserMessage(message))

		for round := 0; ; round++ {
			if round >= o.maxRounds {
				o.logger.Error("tool round cap reached, abandoning turn", "rounds", round)
				yield(exhaustedMessage)
				return
			}

			content, state := o.streamRound(ctx, &messages, message, yield)
			switch state {
			case roundDone:
				o.logger.Info("assistant response complete", "length", len(content))
				o.transcript.Append(ctx, message, content)
				return
			case roundAborted:
				return
			}
		}
	}
}

type roundState int

const (
	roundDone     roundState = iota // Model finished without tool calls
	roundContinue                   // Tool calls executed, run another round
	roundAborted                    // Consumer stopped or stream failed
)

/// streamRound runs a single model turn: it streams content to the consumer,
// accumulates tool-call deltas, and executes any requested tools.
func (o *Orchestrator) streamRound(ctx context.Context, messages *[]completion.Message, userMessage string, yield func(string) bool) (string, roundState) {
	var content strings.Builder
	acc := completion.NewAccumulator()
	finishReason := ""

	for delta, err := range o.streamer.StreamComplete(ctx, *messages, o.tools.Schemas()) {
		if err != nil {
			o.logger.Error("completion stream failed", "error", err)
			yield(failureMessage)
			return "", roundAborted
		}
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if !yield(content.String()) {
				o.logger.Info("consumer stopped, abandoning turn")
				return "", roundAborted
			}
		}
		if delta.ToolCall != nil {
			acc.Absorb(*delta.ToolCall)
		}
		if delta.FinishReason != "" {
			finishReason = delta.FinishReason
			break
		}
	}

	if finishReason == completion.FinishReasonToolCalls && !acc.Empty() {
		calls := acc.Requests()
		o.logger.Info("model requested tool calls", "count", len(calls))

		*messages = append(*messages, completion.Message{
			Role:      completion.RoleAssistant,
			Content:   content.String(),
			ToolCalls: calls,
		})
		results := o.tools.Execute(ctx, calls)
		*messages = append(*messages, results...)

		if len(results) > 0 {
			o.transcript.Append(ctx, userMessage, results[len(results)-1].Content)
		}
		return content.String(), roundContinue
	}

	return content.String(), roundDone
}
