package domain

import (
	"strings"
	"unicode/utf8"
)

// ScoredChunk is a retrieved chunk with its relevance score.
type ScoredChunk struct {
	// Chunk is the matched chunk, including source metadata.
	Chunk Chunk

	// Score is the cosine similarity between query and chunk (higher is closer).
	Score float64
}

// RetrievalResult is the ordered output of a similarity search.
// Hits are ordered by descending score; ties keep insertion order.
type RetrievalResult struct {
	// Query is the trimmed query text.
	Query string

	// Hits holds at most the requested number of chunks.
	Hits []ScoredChunk

	// State reports whether the collection was missing, empty or ready.
	// An empty Hits slice alone does not tell these apart.
	State CollectionState
}

// Empty returns true when no chunks were retrieved.
func (r RetrievalResult) Empty() bool {
	return len(r.Hits) == 0
}

// RetrieveOptions configures a retrieval.
type RetrieveOptions struct {
	// TopK is the number of chunks to return. Zero means the configured default.
	TopK int
}

// PreviewLength is the number of runes shown when listing a source.
const PreviewLength = 200

// Preview returns the first n runes of the chunk content with whitespace
// runs collapsed, followed by "..." when the content was cut.
func (s ScoredChunk) Preview(n int) string {
	text := strings.Join(strings.Fields(s.Chunk.Content), " ")
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
