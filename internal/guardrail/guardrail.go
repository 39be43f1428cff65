// Package guardrail screens incoming user messages with an LLM-backed
// sentiment and appropriateness classifier. The classifier fails open: any
// ambiguity or transport failure admits the message rather than blocking a
// legitimate visitor.
package guardrail

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"github.com/CodeHalwell/digital-cv/internal/completion"
)

const classifierPrompt = "You are a sentiment and safety classifier. First assess sentiment " +
	"(positive, neutral, or negative). Then determine if the message is " +
	"appropriate for a general audience (no PII (with the exception of email), hate, harassment, sexual, " +
	"or illegal content). Output only one token: 'True' if appropriate, " +
	"or 'False' if not. Do not output anything else." +
	"The only exception to PII is email, which is allowed if it's in the context of the conversation."

// rejectionMessage is shown to the visitor in place of an answer when a
// message is blocked.
const rejectionMessage = "I'm sorry, I can't answer that. Please ask a question that isn't " +
	"about sensitive or inappropriate topics."

// Config contains all required parameters for a Classifier.
type Config struct {
	Completer completion.Completer
	Model     string // Optional classifier model override
	Logger    *slog.Logger
}

func (cfg Config) validate() error {
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	return nil
}

// Classifier decides whether a user message may enter the conversation.
type Classifier struct {
	completer completion.Completer
	model     string
	logger    *slog.Logger
}

// New creates a Classifier.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Classifier{
		completer: cfg.Completer,
		model:     cfg.Model,
		logger:    logger,
	}, nil
}

// Allow reports whether the message is appropriate. Only a verdict that
// normalizes to exactly "false" blocks; everything else, including classifier
// errors and unexpected output, allows the message through.
func (c *Classifier) Allow(ctx context.Context, message string) bool {
	raw, err := c.completer.Complete(ctx, []completion.Message{
		completion.SystemMessage(classifierPrompt),
		completion.UserMessage(message),
	}, completion.CompleteOptions{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   3,
	})
	if err != nil {
		c.logger.Error("guardrail classification failed, allowing message", "error", err)
		return true
	}

	verdict := normalizeVerdict(raw) != "false"
	c.logger.Info("guardrail verdict", "raw", strings.TrimSpace(raw), "allowed", verdict)
	return verdict
}

// RejectionMessage returns the canned reply for blocked messages.
func (c *Classifier) RejectionMessage() string { return rejectionMessage }

// normalizeVerdict strips everything but letters and lowercases, so "False.",
// " FALSE\n" and "false" all compare equal.
func normalizeVerdict(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
