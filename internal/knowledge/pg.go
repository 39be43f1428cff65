package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PG implements Querier over a pgx connection pool.
// The pool must have pgvector types registered; see database.Open.
type PG struct {
	pool *pgxpool.Pool
}

var _ Querier = (*PG)(nil)

// NewPG creates a pgx-backed Querier.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

const upsertDocumentSQL = `
INSERT INTO documents (id, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

// UpsertDocument inserts or updates a document row.
func (q *PG) UpsertDocument(ctx context.Context, params UpsertParams) error {
	_, err := q.pool.Exec(ctx, upsertDocumentSQL,
		params.ID, params.Content, params.Embedding, params.Metadata, params.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

const searchDocumentsSQL = `
SELECT id, content, metadata, created_at, embedding <=> $1 AS distance
FROM documents
ORDER BY embedding <=> $1
LIMIT $2`

// SearchDocuments returns the nearest documents by cosine distance.
func (q *PG) SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Row, error) {
	rows, err := q.pool.Query(ctx, searchDocumentsSQL, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return out, nil
}

const peekDocumentsSQL = `
SELECT id, content, metadata, created_at
FROM documents
ORDER BY created_at, id
LIMIT $1`

// PeekDocuments returns the earliest stored documents.
func (q *PG) PeekDocuments(ctx context.Context, limit int32) ([]Row, error) {
	rows, err := q.pool.Query(ctx, peekDocumentsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("peek documents: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan peek row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate peek rows: %w", err)
	}
	return out, nil
}

// CountDocuments counts all documents.
func (q *PG) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// DeleteDocument deletes a document by ID.
func (q *PG) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
