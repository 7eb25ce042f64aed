package domain

import "time"

// CollectionState distinguishes a never-built index from an empty one.
type CollectionState string

// Collection states.
const (
	// CollectionMissing means no collection has been built at the store location.
	CollectionMissing CollectionState = "missing"

	// CollectionEmpty means the collection exists but holds zero chunks
	// (it was built from an empty corpus).
	CollectionEmpty CollectionState = "empty"

	// CollectionReady means the collection exists and holds at least one chunk.
	CollectionReady CollectionState = "ready"
)

// String returns the string representation.
func (s CollectionState) String() string {
	return string(s)
}

// CollectionInfo is the metadata persisted alongside a collection.
// The embedding identity is recorded so a mismatched configuration can be refused.
type CollectionInfo struct {
	// Name is the collection name.
	Name string

	// EmbeddingModel is the model identity that produced every vector.
	EmbeddingModel string

	// Dimensions is the vector size shared by every record.
	Dimensions int

	// ChunkSize and ChunkOverlap are the chunking settings used at build time.
	ChunkSize    int
	ChunkOverlap int

	// ChunkCount is the number of embedding records.
	ChunkCount int

	// DocumentCount is the number of documents that produced at least one chunk.
	DocumentCount int

	// BuiltAt is when the collection was committed.
	BuiltAt time.Time
}

// State returns the collection state for an existing collection.
func (c *CollectionInfo) State() CollectionState {
	if c == nil {
		return CollectionMissing
	}
	if c.ChunkCount == 0 {
		return CollectionEmpty
	}
	return CollectionReady
}
