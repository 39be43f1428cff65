package api

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeHalwell/digital-cv/internal/completion"
	"github.com/CodeHalwell/digital-cv/internal/log"
)

type stubChatter struct {
	emissions []string
	message   string
	history   []completion.Message
}

func (s *stubChatter) Chat(_ context.Context, message string, history []completion.Message) iter.Seq[string] {
	s.message = message
	s.history = history
	return func(yield func(string) bool) {
		for _, e := range s.emissions {
			if !yield(e) {
				return
			}
		}
	}
}

func newTestServer(t *testing.T, chatter Chatter) *Server {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Addr:    "127.0.0.1:0",
		Chatter: chatter,
		Logger:  log.NewNop(),
	})
	require.NoError(t, err)
	return srv
}

// parseSSE splits an SSE body into (event, data) pairs.
func parseSSE(t *testing.T, body string) [][2]string {
	t.Helper()

	var events [][2]string
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var event, data string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		require.NotEmpty(t, event, "malformed SSE block: %q", block)
		events = append(events, [2]string{event, data})
	}
	return events
}

func TestNewServerValidatesConfig(t *testing.T) {
	_, err := NewServer(ServerConfig{Chatter: &stubChatter{}})
	assert.ErrorContains(t, err, "address")

	_, err = NewServer(ServerConfig{Addr: ":8080"})
	assert.ErrorContains(t, err, "chatter")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubChatter{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChatStream(t *testing.T) {
	chatter := &stubChatter{emissions: []string{"Hel", "Hello", "Hello there"}}
	srv := newTestServer(t, chatter)

	body := `{"message": "hi", "history": [{"role": "user", "content": "earlier"}, {"role": "assistant", "content": "reply"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 4)

	for i, want := range []string{"Hel", "Hello", "Hello there"} {
		assert.Equal(t, EventChunk, events[i][0])
		var payload ChunkPayload
		require.NoError(t, json.Unmarshal([]byte(events[i][1]), &payload))
		assert.Equal(t, want, payload.Text)
	}

	assert.Equal(t, EventDone, events[3][0])
	var done DonePayload
	require.NoError(t, json.Unmarshal([]byte(events[3][1]), &done))
	assert.Equal(t, "Hello there", done.Response)

	assert.Equal(t, "hi", chatter.message)
	require.Len(t, chatter.history, 2)
	assert.Equal(t, completion.RoleUser, chatter.history[0].Role)
}

func TestChatStreamRequiresMessage(t *testing.T) {
	srv := newTestServer(t, &stubChatter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{"history": []}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0][0])
	assert.Contains(t, events[0][1], "MISSING_MESSAGE")
}

func TestChatStreamRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t, &stubChatter{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/stream", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0][0])
	assert.Contains(t, events[0][1], "INVALID_REQUEST")
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panicHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t, &stubChatter{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
