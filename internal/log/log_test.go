package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digitalcv.log")

	logger, closeFn, err := New(Config{Level: slog.LevelInfo, File: path, NoColor: true})
	require.NoError(t, err)

	logger.Info("hello", "component", "test")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestNewWithoutFileSink(t *testing.T) {
	logger, closeFn, err := New(Config{NoColor: true})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NoError(t, closeFn())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestFanoutDuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	handler := newFanoutHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	)

	logger := slog.New(handler).With("session", "s1")
	logger.Info("fanned out")

	assert.Contains(t, a.String(), "fanned out")
	assert.Contains(t, b.String(), "fanned out")
	assert.Contains(t, a.String(), "session=s1")
	assert.Contains(t, b.String(), "session=s1")
}

func TestFanoutRespectsLevel(t *testing.T) {
	var debugSink, infoSink bytes.Buffer
	handler := newFanoutHandler(
		slog.NewTextHandler(&debugSink, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoSink, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)

	slog.New(handler).Debug("debug only")

	assert.Contains(t, debugSink.String(), "debug only")
	assert.Empty(t, infoSink.String())
}
