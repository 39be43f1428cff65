package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeHalwell/digital-cv/internal/knowledge"
	"github.com/CodeHalwell/digital-cv/internal/log"
)

type mockStore struct {
	batches [][]knowledge.Document
	err     error
}

func (m *mockStore) AddMany(_ context.Context, docs []knowledge.Document, _ [][]float32) error {
	m.batches = append(m.batches, docs)
	return m.err
}

func newTestPipeline(t *testing.T, store Store) *Pipeline {
	t.Helper()

	p, err := New(Config{Store: store, Logger: log.NewNop()})
	require.NoError(t, err)
	return p
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(2000, 200)

	chunks := c.Split("Daniel Halwell is an AI engineer.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Daniel Halwell is an AI engineer.", chunks[0])
}

func TestChunkerRespectsSizeLimit(t *testing.T) {
	c := NewChunker(100, 20)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("some words about a long career in science and engineering. ")
	}

	chunks := c.Split(b.String())
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 100)
	}
}

func TestChunkerPrefersParagraphBoundaries(t *testing.T) {
	c := NewChunker(25, 0)

	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.NotContains(t, chunk, "\n\n", "chunks should split at paragraph breaks")
	}
}

func TestChunkerOverlapCarriesContext(t *testing.T) {
	c := NewChunker(40, 15)

	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	// Some tail of each chunk reappears at the head of the next.
	for i := 1; i < len(chunks); i++ {
		words := strings.Fields(chunks[i])
		require.NotEmpty(t, words)
		assert.Contains(t, chunks[i-1], words[0])
	}
}

func TestChunkerDropsWhitespaceOnlyChunks(t *testing.T) {
	c := NewChunker(2000, 200)

	assert.Empty(t, c.Split("   \n\n   "))
}

func TestChunkerHardSplitsUnbrokenText(t *testing.T) {
	c := NewChunker(50, 10)

	chunks := c.Split(strings.Repeat("x", 180))
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 50)
	}
	assert.Equal(t, 180, len(strings.Join(chunks, "")))
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.md")
	require.NoError(t, os.WriteFile(path, []byte("Daniel Halwell builds RAG systems."), 0o600))

	store := &mockStore{}
	p := newTestPipeline(t, store)

	n, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, store.batches, 1)
	require.Len(t, store.batches[0], 1)
	doc := store.batches[0][0]
	assert.Equal(t, "summary.md:0", doc.ID)
	assert.Equal(t, "Daniel Halwell builds RAG systems.", doc.Content)
	assert.Equal(t, "summary.md", doc.Metadata["source"])
	assert.Equal(t, "0", doc.Metadata["chunk_id"])
}

func TestIngestFileMissing(t *testing.T) {
	p := newTestPipeline(t, &mockStore{})

	_, err := p.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestIngestFileStoreFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

	p := newTestPipeline(t, &mockStore{err: errors.New("connection refused")})

	_, err := p.IngestFile(context.Background(), path)
	assert.ErrorContains(t, err, "cv.txt")
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first doc"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("second doc"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte{0x89}, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	store := &mockStore{}
	p := newTestPipeline(t, store)

	processed, err := p.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Len(t, store.batches, 2)
}

func TestIngestDirectoryContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o600))

	store := &mockStore{err: errors.New("insert failed")}
	p := newTestPipeline(t, store)

	processed, err := p.IngestDirectory(context.Background(), dir)
	assert.Error(t, err)
	assert.Equal(t, 0, processed)
	assert.Len(t, store.batches, 2, "both files attempted despite failures")
}
