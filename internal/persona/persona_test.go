package persona

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeHalwell/digital-cv/internal/completion"
	"github.com/CodeHalwell/digital-cv/internal/knowledge"
	"github.com/CodeHalwell/digital-cv/internal/log"
)

type mockStore struct {
	searchResults []knowledge.Result
	searchErr     error
	searchQueries []string
	peekDocs      []knowledge.Document
	peekErr       error
}

func (m *mockStore) Search(_ context.Context, query string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	m.searchQueries = append(m.searchQueries, query)
	return m.searchResults, m.searchErr
}

func (m *mockStore) Peek(_ context.Context, _ int32) ([]knowledge.Document, error) {
	return m.peekDocs, m.peekErr
}

func newTestPersona(t *testing.T, store Store) *Persona {
	t.Helper()

	p, err := New(context.Background(), Config{
		Name:   "Daniel Halwell",
		Email:  "danielhalwell@gmail.com",
		Store:  store,
		Logger: log.NewNop(),
	})
	require.NoError(t, err)
	return p
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Store: &mockStore{}})
	assert.ErrorContains(t, err, "name")

	_, err = New(context.Background(), Config{Name: "Daniel Halwell"})
	assert.ErrorContains(t, err, "store")
}

func TestSystemContextFromKnowledgeBase(t *testing.T) {
	store := &mockStore{peekDocs: []knowledge.Document{
		{Content: "Daniel Halwell is a scientist-turned-AI engineer.", Metadata: map[string]string{"source": "summary.md"}},
		{Content: "", Metadata: map[string]string{"source": "empty.md"}},
	}}

	p := newTestPersona(t, store)

	assert.Contains(t, p.SystemContext(), "Daniel Halwell")
	assert.Contains(t, p.SystemContext(), "Source: summary.md")
	assert.NotContains(t, p.SystemContext(), "empty.md")
}

func TestSystemContextFallsBackWhenEmpty(t *testing.T) {
	p := newTestPersona(t, &mockStore{})

	assert.Contains(t, p.SystemContext(), "Daniel Halwell")
	assert.Contains(t, p.SystemContext(), "scientist-turned-AI engineer")
}

func TestSystemContextFallsBackOnPeekError(t *testing.T) {
	p := newTestPersona(t, &mockStore{peekErr: errors.New("connection refused")})

	assert.Contains(t, p.SystemContext(), "scientist-turned-AI engineer")
}

func TestComposeRetrievalQuery(t *testing.T) {
	p := newTestPersona(t, &mockStore{})

	history := []completion.Message{
		completion.UserMessage("What did you study?"),
		{Role: completion.RoleAssistant, Content: "Chemistry."},
		completion.UserMessage("Where?"),
		{Role: completion.RoleAssistant, Content: "At university."},
		completion.UserMessage("  When?  "),
	}

	got := p.ComposeRetrievalQuery("And after that?", history)
	// Only the last two user turns, oldest first, then the current message.
	assert.Equal(t, "Where?\n\nWhen?\n\nAnd after that?", got)
}

func TestComposeRetrievalQueryEmpty(t *testing.T) {
	p := newTestPersona(t, &mockStore{})

	assert.Empty(t, p.ComposeRetrievalQuery("   ", nil))
	assert.Empty(t, p.ComposeRetrievalQuery("", []completion.Message{
		{Role: completion.RoleAssistant, Content: "Hello!"},
	}))
}

func TestBuildRetrievalContext(t *testing.T) {
	store := &mockStore{searchResults: []knowledge.Result{
		{
			Document: knowledge.Document{
				Content:  "First paragraph.\n\nSecond paragraph.",
				Metadata: map[string]string{"source": "cv.md", "chunk_id": "3"},
			},
			Distance: 0.1234,
		},
		{
			Document: knowledge.Document{Content: "   "},
			Distance: 0.5,
		},
	}}

	p := newTestPersona(t, store)

	got := p.BuildRetrievalContext(context.Background(), "tell me about your work", nil)
	require.True(t, strings.HasPrefix(got, "Retrieved knowledge snippets:\n"))
	assert.Contains(t, got, "[1] Source: cv.md#chunk-3 (score: 0.123)")
	// Double newlines inside a snippet collapse so block boundaries stay unambiguous.
	assert.Contains(t, got, "First paragraph.\nSecond paragraph.")
}

func TestBuildRetrievalContextSkipsEmptyQuery(t *testing.T) {
	store := &mockStore{}
	p := newTestPersona(t, store)

	got := p.BuildRetrievalContext(context.Background(), "   ", nil)
	assert.Empty(t, got)
	assert.Empty(t, store.searchQueries, "retrieval should not run for an empty query")
}

func TestBuildRetrievalContextSearchFailureDegrades(t *testing.T) {
	store := &mockStore{searchErr: errors.New("timeout")}
	p := newTestPersona(t, store)

	assert.Empty(t, p.BuildRetrievalContext(context.Background(), "who are you?", nil))
}

func TestSystemPrompt(t *testing.T) {
	p := newTestPersona(t, &mockStore{peekDocs: []knowledge.Document{
		{Content: "AI engineer based in the UK.", Metadata: map[string]string{"source": "about.md"}},
	}})

	prompt := p.SystemPrompt()
	assert.Contains(t, prompt, "You are acting as Daniel Halwell")
	assert.Contains(t, prompt, "danielhalwell@gmail.com")
	assert.Contains(t, prompt, "record_unknown_question")
	assert.Contains(t, prompt, "AI engineer based in the UK.")
}

func TestGroundingMessage(t *testing.T) {
	p := newTestPersona(t, &mockStore{})

	msg := p.GroundingMessage("Retrieved knowledge snippets:\n[1] Source: cv.md\nHello")
	assert.Contains(t, msg, "general knowledge of Daniel Halwell")
	assert.Contains(t, msg, "[1] Source: cv.md")
}
