// Package tools implements the function-calling surface exposed to the
// model: a registry mapping tool names to handlers, and the concrete
// handlers for recording visitor contact details and unanswered questions.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/CodeHalwell/digital-cv/internal/completion"
)

// Handler executes one tool call and returns the JSON result payload.
type Handler func(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error)

// Registry maps tool names to their schemas and handlers.
type Registry struct {
	schemas  []completion.ToolSchema
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds a tool. Registering the same name twice replaces the
// previous schema and handler.
func (r *Registry) Register(schema completion.ToolSchema, handler Handler) {
	for i, existing := range r.schemas {
		if existing.Name == schema.Name {
			r.schemas[i] = schema
			r.handlers[schema.Name] = handler
			return
		}
	}
	r.schemas = append(r.schemas, schema)
	r.handlers[schema.Name] = handler
}

// Schemas returns the registered tool schemas in registration order.
func (r *Registry) Schemas() []completion.ToolSchema {
	return r.schemas
}

// Execute runs the requested tool calls in order and returns one tool
// message per call, each tagged with the originating call ID. Unknown tools
// and handler failures produce result payloads rather than errors, so one
// bad call never aborts the turn.
func (r *Registry) Execute(ctx context.Context, calls []completion.ToolCallRequest) []completion.Message {
	results := make([]completion.Message, 0, len(calls))
	for _, call := range calls {
		results = append(results, completion.ToolMessage(call.ID, r.executeOne(ctx, call)))
	}
	return results
}

func (r *Registry) executeOne(ctx context.Context, call completion.ToolCallRequest) string {
	handler, ok := r.handlers[call.Name]
	if !ok {
		r.logger.Warn("model requested unknown tool", "tool", call.Name)
		return "{}"
	}

	r.logger.Info("executing tool", "tool", call.Name)

	result, err := handler(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		r.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		payload, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			return `{"error": "tool execution failed"}`
		}
		return string(payload)
	}
	return string(result)
}

// recordedOK is the canonical success payload for the recording tools.
var recordedOK = json.RawMessage(`{"recorded": "ok"}`)

// Notifier is the outbound notification channel the recording tools use.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Recorder implements the two recording tools backed by a Notifier.
type Recorder struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(notifier Notifier, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{notifier: notifier, logger: logger}
}

// RegisterAll registers both recording tools on the registry.
func (rec *Recorder) RegisterAll(r *Registry) {
	r.Register(UserDetailsSchema(), rec.RecordUserDetails)
	r.Register(UnknownQuestionSchema(), rec.RecordUnknownQuestion)
}

// UserDetailsSchema describes the record_user_details tool.
func UserDetailsSchema() completion.ToolSchema {
	return completion.ToolSchema{
		Name:        "record_user_details",
		Description: "Use this tool to record that a user is interested in being in touch and provided an email address",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"email": map[string]any{
					"type":        "string",
					"description": "The email address of this user",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "The user's name, if they provided it",
				},
				"notes": map[string]any{
					"type":        "string",
					"description": "Any additional information about the conversation that's worth recording to give context",
				},
			},
			"required":             []string{"email"},
			"additionalProperties": false,
		},
	}
}

// UnknownQuestionSchema describes the record_unknown_question tool.
func UnknownQuestionSchema() completion.ToolSchema {
	return completion.ToolSchema{
		Name:        "record_unknown_question",
		Description: "Always use this tool to record any question that couldn't be answered as you didn't know the answer",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question that couldn't be answered",
				},
			},
			"required":             []string{"question"},
			"additionalProperties": false,
		},
	}
}

// RecordUserDetails records a visitor's contact details and notifies the
// site owner.
func (rec *Recorder) RecordUserDetails(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Notes string `json:"notes"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid record_user_details arguments: %w", err)
	}

	if args.Name == "" {
		args.Name = "Name not provided"
	}
	if args.Notes == "" {
		args.Notes = "not provided"
	}

	text := fmt.Sprintf("Recording %s with email %s and notes %s", args.Name, args.Email, args.Notes)
	rec.logger.Info("recording user details", "name", args.Name, "email", args.Email)
	rec.notifier.Notify(ctx, text)
	return recordedOK, nil
}

// RecordUnknownQuestion records a question the model could not answer and
// notifies the site owner.
func (rec *Recorder) RecordUnknownQuestion(ctx context.Context, arguments json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid record_unknown_question arguments: %w", err)
	}

	rec.logger.Info("recording unknown question", "question", args.Question)
	rec.notifier.Notify(ctx, fmt.Sprintf("Recording %s", args.Question))
	return recordedOK, nil
}
