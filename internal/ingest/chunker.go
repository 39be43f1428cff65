package ingest

import "strings"

// Chunker splits text recursively on progressively finer separators,
// keeping chunks under a size limit with a fixed overlap between adjacent
// chunks so sentence boundaries are not lost at chunk edges.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

const (
	defaultChunkSize    = 2000
	defaultChunkOverlap = 200
)

// NewChunker creates a Chunker. Non-positive size or overlap fall back to
// the defaults; overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{
		size:       size,
		overlap:    overlap,
		separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Split breaks text into chunks of at most the configured size. Whitespace
// only fragments are dropped.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	for _, piece := range c.split(text, c.separators) {
		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

func (c *Chunker) split(text string, separators []string) []string {
	if len(text) <= c.size {
		return []string{text}
	}

	separator := separators[len(separators)-1]
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if separator == "" {
		parts = splitRunes(text, c.size)
	} else {
		parts = strings.Split(text, separator)
	}

	var final []string
	var pending []string
	pendingLen := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		final = append(final, strings.Join(pending, separator))

		// Carry trailing parts forward as overlap for the next chunk.
		for pendingLen > c.overlap && len(pending) > 0 {
			pendingLen -= len(pending[0]) + len(separator)
			pending = pending[1:]
		}
	}

	for _, part := range parts {
		if len(part) > c.size {
			flush()
			pending = nil
			pendingLen = 0
			final = append(final, c.split(part, rest)...)
			continue
		}
		if pendingLen+len(part)+len(separator) > c.size {
			flush()
		}
		pending = append(pending, part)
		pendingLen += len(part) + len(separator)
	}
	if len(pending) > 0 {
		final = append(final, strings.Join(pending, separator))
	}
	return final
}

// splitRunes hard-splits text into size-bounded pieces without breaking
// UTF-8 sequences.
func splitRunes(text string, size int) []string {
	var parts []string
	runes := []rune(text)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
