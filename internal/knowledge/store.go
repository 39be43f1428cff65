// Package knowledge manages the persona knowledge base with vector search.
// It handles embedding generation and similarity search using PostgreSQL +
// pgvector; the orchestration layer treats it as the retrieval capability.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds vector search queries (embedding + SQL) so a slow
// backend cannot stall a conversation turn.
const searchTimeout = 10 * time.Second

// UpsertParams carries one document row for insertion.
type UpsertParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Metadata  []byte
	CreatedAt time.Time
}

// Row is one document row returned from the database.
// Distance is populated by search queries only.
type Row struct {
	ID        string
	Content   string
	Metadata  []byte
	CreatedAt time.Time
	Distance  float32
}

// Querier defines the database operations the Store needs.
// Interfaces are defined by the consumer, not the provider; this keeps the
// Store testable without a live database.
type Querier interface {
	// UpsertDocument inserts or updates a document.
	UpsertDocument(ctx context.Context, params UpsertParams) error

	// SearchDocuments returns the nearest documents to the embedding,
	// closest first.
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Row, error)

	// PeekDocuments returns the first stored documents in insertion order.
	PeekDocuments(ctx context.Context, limit int32) ([]Row, error)

	// CountDocuments counts all documents.
	CountDocuments(ctx context.Context) (int64, error)

	// DeleteDocument deletes a document by ID.
	DeleteDocument(ctx context.Context, id string) error
}

// Embedder computes embedding vectors for texts, positionally aligned.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store manages knowledge documents with vector search capabilities.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store over the given querier and embedder.
func New(querier Querier, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, embedder: embedder, logger: logger}
}

// Add embeds and stores a single document.
func (s *Store) Add(ctx context.Context, doc Document) error {
	return s.AddMany(ctx, []Document{doc}, nil)
}

// AddMany embeds and stores a batch of documents. When embeddings is non-nil
// it must align positionally with docs and the embedding step is skipped;
// this supports ingestion pipelines that batch-embed upfront.
func (s *Store) AddMany(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) == 0 {
		return nil
	}

	if embeddings == nil {
		texts := make([]string, len(docs))
		for i, doc := range docs {
			texts[i] = doc.Content
		}
		var err error
		embeddings, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("generating embeddings: %w", err)
		}
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(docs))
	}

	for i, doc := range docs {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("empty embedding for document %q", doc.ID)
		}

		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", doc.ID, err)
		}

		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		err = s.queries.UpsertDocument(ctx, UpsertParams{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: pgvector.NewVector(embeddings[i]),
			Metadata:  metadataJSON,
			CreatedAt: createdAt,
		})
		if err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
		s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	}
	return nil
}

// Search performs semantic search and returns the closest documents first.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vectors, err := s.embedder.Embed(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	rows, err := s.queries.SearchDocuments(queryCtx, pgvector.NewVector(vectors[0]), cfg.topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Document: s.rowToDocument(row),
			Distance: row.Distance,
		})
	}
	return results, nil
}

// Peek returns up to n stored documents in insertion order. It is used to
// bootstrap the persona context at startup.
func (s *Store) Peek(ctx context.Context, n int32) ([]Document, error) {
	if n <= 0 {
		return nil, fmt.Errorf("peek size must be positive, got %d", n)
	}

	rows, err := s.queries.PeekDocuments(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("peeking documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, s.rowToDocument(row))
	}
	return docs, nil
}

// Count returns the total number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.queries.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(count), nil
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}

// rowToDocument converts a database row to the business model.
func (s *Store) rowToDocument(row Row) Document {
	var metadata map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("failed to parse metadata", "document_id", row.ID, "error", err)
		}
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return Document{
		ID:        row.ID,
		Content:   row.Content,
		Metadata:  metadata,
		CreatedAt: row.CreatedAt,
	}
}
