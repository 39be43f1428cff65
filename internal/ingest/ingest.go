// Package ingest loads personal knowledge documents from disk, chunks them,
// and writes them to the knowledge base.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CodeHalwell/digital-cv/internal/knowledge"
)

// Store is the slice of the knowledge base the pipeline writes to.
type Store interface {
	AddMany(ctx context.Context, docs []knowledge.Document, embeddings [][]float32) error
}

// Config contains all required parameters for a Pipeline.
type Config struct {
	Store        Store
	ChunkSize    int // Optional, defaults to 2000
	ChunkOverlap int // Optional, defaults to 200
	Logger       *slog.Logger
}

func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("knowledge store is required")
	}
	return nil
}

// Pipeline ingests text documents into the knowledge base.
type Pipeline struct {
	store   Store
	chunker *Chunker
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:   cfg.Store,
		chunker: NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:  logger,
	}, nil
}

// supportedExt reports whether the pipeline can ingest the file.
func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// IngestFile chunks a single document and upserts its chunks. Document IDs
// are derived from the source name and chunk index, so re-ingesting a
// changed file replaces its previous chunks in place.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	source := filepath.Base(path)
	chunks := p.chunker.Split(string(data))
	if len(chunks) == 0 {
		p.logger.Warn("document produced no chunks", "source", source)
		return 0, nil
	}

	docs := make([]knowledge.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, knowledge.Document{
			ID:      fmt.Sprintf("%s:%d", source, i),
			Content: chunk,
			Metadata: map[string]string{
				"source":   source,
				"chunk_id": strconv.Itoa(i),
			},
		})
	}

	// Embeddings are computed by the store in one batch call.
	if err := p.store.AddMany(ctx, docs, nil); err != nil {
		return 0, fmt.Errorf("failed to store chunks for %s: %w", source, err)
	}

	p.logger.Info("ingested document", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestDirectory ingests every supported file directly under dir.
// Unsupported files are skipped with a log line; a failure on one file does
// not stop the rest. Returns the number of files processed and the combined
// per-file errors, if any.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var errs []error
	processed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !supportedExt(entry.Name()) {
			p.logger.Info("skipping unsupported file", "file", entry.Name())
			continue
		}
		if _, err := p.IngestFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			p.logger.Error("failed to ingest file", "file", entry.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		processed++
	}

	p.logger.Info("directory ingestion complete", "dir", dir, "files", processed)
	return processed, errors.Join(errs...)
}
