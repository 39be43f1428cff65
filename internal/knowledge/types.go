package knowledge

import "time"

// Document represents a stored knowledge chunk about the persona.
type Document struct {
	ID        string            // Unique identifier (typically "<source>#<chunk>")
	Content   string            // Chunk text content
	Metadata  map[string]string // Optional metadata (source, chunk_id, etc.)
	CreatedAt time.Time         // Creation timestamp
}

// Result represents a single search result with its distance to the query.
// Distance is the raw vector-space distance (lower = closer); it is not
// normalized and must not be treated as a probability.
type Result struct {
	Document Document
	Distance float32
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK int32
}

// WithTopK sets the maximum number of results to return. Default is 4.
func WithTopK(k int32) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{topK: 4}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
