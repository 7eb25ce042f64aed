package domain

import "time"

// Document represents one source artifact discovered in the corpus.
// It is the canonical representation after normalisation.
type Document struct {
	// ID is the stable identifier for the document within a corpus.
	// Derived from the path relative to the corpus root.
	ID string

	// Path is the absolute file path.
	Path string

	// URI is the original location as a file:// URI.
	URI string

	// Title is the human-readable title.
	Title string

	// MIMEType is the detected content type.
	MIMEType string

	// ContentHash is the hex SHA-256 of the raw bytes, used to detect change.
	ContentHash string

	// Size is the raw file size in bytes.
	Size int64

	// ModifiedAt is the file modification time.
	ModifiedAt time.Time

	// Content is the full text content after normalisation.
	// This is the complete document text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any
}

// Chunk represents a retrievable unit within a document.
// Chunks are never mutated after creation; a rebuild supersedes them.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for similarity search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs
	// (source_file, source_path, page, heading, char_start, char_end).
	Metadata map[string]any
}

// Well-known chunk metadata keys.
const (
	MetaSourceFile = "source_file"
	MetaSourcePath = "source_path"
	MetaExtension  = "extension"
	MetaPage       = "page"
	MetaHeading    = "heading"
	MetaCharStart  = "char_start"
	MetaCharEnd    = "char_end"
)

// SourceFile returns the file name the chunk was extracted from.
// Falls back to the document ID when the metadata is absent.
func (c Chunk) SourceFile() string {
	if v, ok := c.Metadata[MetaSourceFile].(string); ok && v != "" {
		return v
	}
	return c.DocumentID
}

// SourcePath returns the full path of the originating document, if known.
func (c Chunk) SourcePath() string {
	v, _ := c.Metadata[MetaSourcePath].(string)
	return v
}

// Heading returns the heading path the chunk starts under, if any.
func (c Chunk) Heading() string {
	v, _ := c.Metadata[MetaHeading].(string)
	return v
}

// Page returns the 1-based page number, or 0 when the document has no pages.
func (c Chunk) Page() int {
	return MetaInt(c.Metadata, MetaPage)
}

// MetaInt reads an integer metadata value regardless of how it was decoded.
// JSON round trips turn ints into float64; TOML yields int64.
func MetaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// EmbeddingRecord pairs a chunk with its vector as produced at index time.
type EmbeddingRecord struct {
	Chunk  Chunk
	Vector []float32
}
