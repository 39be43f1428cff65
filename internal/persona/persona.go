// Package persona composes the prompt context for the represented
// individual: the static persona preamble built from the knowledge base, the
// per-turn retrieval context, and the behavioral system prompt.
package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CodeHalwell/digital-cv/internal/completion"
	"github.com/CodeHalwell/digital-cv/internal/knowledge"
)

const (
	// retrievalTopK is the number of snippets fetched per turn.
	retrievalTopK = 4

	// peekSize is the number of stored entries sampled to build the static
	// persona context at construction time.
	peekSize = 5

	// recentUserTurns is the retrieval query window over prior user turns.
	recentUserTurns = 2
)

// Store is the slice of the knowledge base the persona needs.
type Store interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	Peek(ctx context.Context, n int32) ([]knowledge.Document, error)
}

// Config contains all required parameters for a Persona.
type Config struct {
	Name   string // Display name of the represented individual
	Email  string // Contact email surfaced in prompts
	Store  Store
	Logger *slog.Logger
}

func (cfg Config) validate() error {
	if cfg.Name == "" {
		return errors.New("persona name is required")
	}
	if cfg.Store == nil {
		return errors.New("knowledge store is required")
	}
	return nil
}

// Persona is the identity the assistant represents. It is built once at
// startup and is immutable afterwards, so it is safely shared across
// concurrent sessions without locking.
type Persona struct {
	name          string
	email         string
	store         Store
	logger        *slog.Logger
	systemContext string // Cached at construction
}

// New creates a Persona and eagerly builds its static system context from
// the knowledge base. A failure to reach the knowledge base degrades to a
// generic description rather than failing startup.
func New(ctx context.Context, cfg Config) (*Persona, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Persona{
		name:   cfg.Name,
		email:  cfg.Email,
		store:  cfg.Store,
		logger: logger,
	}
	p.systemContext = p.buildSystemContext(ctx)
	return p, nil
}

// Name returns the persona's display name.
func (p *Persona) Name() string { return p.name }

// Email returns the persona's contact email.
func (p *Persona) Email() string { return p.email }

// SystemContext returns the cached persona context preamble.
func (p *Persona) SystemContext() string { return p.systemContext }

// buildSystemContext renders a concise persona context from the first few
// stored knowledge entries, or a generic fallback description when the
// knowledge base is empty or unreachable.
func (p *Persona) buildSystemContext(ctx context.Context) string {
	docs, err := p.store.Peek(ctx, peekSize)
	if err != nil {
		p.logger.Error("failed to peek knowledge base", "error", err)
		docs = nil
	}

	var entries []string
	for _, doc := range docs {
		text := strings.TrimSpace(doc.Content)
		if text == "" {
			continue
		}
		source := doc.Metadata["source"]
		if source == "" {
			source = "unknown"
		}
		entries = append(entries, fmt.Sprintf("Source: %s\n%s", source, text))
	}

	if len(entries) == 0 {
		return fmt.Sprintf(
			"You are %s, a scientist-turned-AI engineer who builds practical AI tooling,"+
				" RAG systems, and automations. Be concise, professional, and acknowledge"+
				" uncertainty when context is missing.", p.name)
	}

	return fmt.Sprintf(
		"You are provided with an indexed knowledge base about %s."+
			" Use it to answer questions faithfully.\n\n%s",
		p.name, strings.Join(entries, "\n\n"))
}

// ComposeRetrievalQuery combines the current message with up to the last two
// prior user turns (most recent last) for retrieval recall on follow-up
// questions. Returns an empty string when nothing non-empty is available.
func (p *Persona) ComposeRetrievalQuery(message string, history []completion.Message) string {
	var recent []string
	for i := len(history) - 1; i >= 0 && len(recent) < recentUserTurns; i-- {
		if history[i].Role != completion.RoleUser {
			continue
		}
		if content := strings.TrimSpace(history[i].Content); content != "" {
			recent = append(recent, content)
		}
	}

	// Reverse into chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}

	if msg := strings.TrimSpace(message); msg != "" {
		recent = append(recent, msg)
	}
	return strings.Join(recent, "\n\n")
}

// BuildRetrievalContext retrieves and renders knowledge snippets relevant to
// the message. Retrieval failure is non-fatal: the turn proceeds ungrounded
// with an empty context.
func (p *Persona) BuildRetrievalContext(ctx context.Context, message string, history []completion.Message) string {
	query := p.ComposeRetrievalQuery(message, history)
	if query == "" {
		return ""
	}

	results, err := p.store.Search(ctx, query, knowledge.WithTopK(retrievalTopK))
	if err != nil {
		p.logger.Error("knowledge base query failed", "error", err)
		return ""
	}

	var blocks []string
	for _, result := range results {
		text := strings.TrimSpace(result.Document.Content)
		if text == "" {
			continue
		}

		source := result.Document.Metadata["source"]
		if source == "" {
			source = result.Document.Metadata["path"]
		}
		if source == "" {
			source = "unknown"
		}
		if chunkID := result.Document.Metadata["chunk_id"]; chunkID != "" {
			source = fmt.Sprintf("%s#chunk-%s", source, chunkID)
		}

		snippet := strings.ReplaceAll(text, "\n\n", "\n")
		blocks = append(blocks, fmt.Sprintf("[%d] Source: %s (score: %.3f)\n%s",
			len(blocks)+1, source, result.Distance, snippet))
	}

	if len(blocks) == 0 {
		return ""
	}
	return "Retrieved knowledge snippets:\n" + strings.Join(blocks, "\n\n")
}

// SystemPrompt constructs the behavioral system prompt: represent the
// persona faithfully, ground answers in retrieved context, log unanswerable
// questions, and encourage follow-up contact.
func (p *Persona) SystemPrompt() string {
	return fmt.Sprintf(`You are acting as %[1]s. You are answering questions on %[1]s's website, particularly questions related to %[1]s's career, background, skills and experience.
Your responsibility is to represent %[1]s for interactions on the website as faithfully as possible.
You have access to a retrieval system that stores vetted chunks about %[1]s. Always ground answers in those retrieved contexts.
Be professional and engaging, keeping responses concise unless a longer explanation is requested. If you cannot answer confidently, log the question via the record_unknown_question tool.
Encourage meaningful follow-up, suggesting email contact when appropriate. Reference where your context came from when it adds clarity.
My email is %[2]s.
Context preview:
%[3]s`, p.name, p.email, p.systemContext)
}

// GroundingMessage renders the per-turn system message that carries the
// retrieval context into the conversation.
func (p *Persona) GroundingMessage(retrievalContext string) string {
	return fmt.Sprintf(
		"Use the following retrieved snippets when forming your answer."+
			" If they are empty, rely on your general knowledge of %s."+
			" If you don't know the answer, log the question via the record_unknown_question tool."+
			" My email is %s.\n%s",
		p.name, p.email, retrievalContext)
}
