package chat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Transcript persists an append-only record of each exchange.
type Transcript interface {
	Append(ctx context.Context, user, assistant string)
}

// FileTranscript appends exchanges to a plain text file as alternating
// "User:" and "Assistant:" lines. Safe for concurrent sessions.
type FileTranscript struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileTranscript creates a FileTranscript writing to path. The file is
// created on first append.
func NewFileTranscript(path string, logger *slog.Logger) *FileTranscript {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileTranscript{path: path, logger: logger}
}

// Append writes one exchange. Failures are logged and swallowed; transcript
// persistence never disturbs the conversation.
func (t *FileTranscript) Append(_ context.Context, user, assistant string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.logger.Error("failed to open transcript file", "path", t.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "User: %s\nAssistant: %s\n", user, assistant); err != nil {
		t.logger.Error("failed to append transcript entry", "path", t.path, "error", err)
	}
}

// NopTranscript discards all exchanges.
type NopTranscript struct{}

// Append implements Transcript.
func (NopTranscript) Append(context.Context, string, string) {}
