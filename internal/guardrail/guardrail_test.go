package guardrail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeHalwell/digital-cv/internal/completion"
	"github.com/CodeHalwell/digital-cv/internal/log"
)

type mockCompleter struct {
	response string
	err      error
	messages []completion.Message
	opts     completion.CompleteOptions
}

func (m *mockCompleter) Complete(_ context.Context, messages []completion.Message, opts completion.CompleteOptions) (string, error) {
	m.messages = messages
	m.opts = opts
	return m.response, m.err
}

func newTestClassifier(t *testing.T, completer completion.Completer) *Classifier {
	t.Helper()

	c, err := New(Config{Completer: completer, Logger: log.NewNop()})
	require.NoError(t, err)
	return c
}

func TestNewRequiresCompleter(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "completer")
}

func TestAllowVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"explicit true", "True", true},
		{"explicit false", "False", false},
		{"padded false", "  FALSE.\n", false},
		{"empty output", "", true},
		{"unexpected token", "maybe", true},
		{"digits only", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, &mockCompleter{response: tt.response})
			assert.Equal(t, tt.want, c.Allow(context.Background(), "hello"))
		})
	}
}

func TestAllowFailsOpenOnError(t *testing.T) {
	c := newTestClassifier(t, &mockCompleter{err: errors.New("rate limited")})

	assert.True(t, c.Allow(context.Background(), "hello"))
}

func TestAllowSendsClassifierPrompt(t *testing.T) {
	completer := &mockCompleter{response: "True"}
	c := newTestClassifier(t, completer)

	c.Allow(context.Background(), "what do you do?")

	require.Len(t, completer.messages, 2)
	assert.Equal(t, completion.RoleSystem, completer.messages[0].Role)
	assert.Contains(t, completer.messages[0].Content, "sentiment and safety classifier")
	assert.Equal(t, "what do you do?", completer.messages[1].Content)
	assert.Equal(t, 3, completer.opts.MaxTokens)
}

func TestRejectionMessage(t *testing.T) {
	c := newTestClassifier(t, &mockCompleter{})

	assert.Contains(t, c.RejectionMessage(), "I'm sorry, I can't answer that")
}
