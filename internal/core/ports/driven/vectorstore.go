package driven

import (
	"context"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// VectorStore is the vector database engine behind the Index Store.
// A collection is written through a CollectionWriter into a staging area and
// becomes visible only when committed, replacing any live collection of the
// same name in one step.
type VectorStore interface {
	// Collection returns metadata for the live collection.
	// Returns domain.ErrNotFound if no collection has been committed.
	Collection(ctx context.Context, name string) (*domain.CollectionInfo, error)

	// BeginCollection starts writing a replacement for the named collection.
	// The live collection stays readable until Commit.
	BeginCollection(ctx context.Context, name string) (CollectionWriter, error)

	// Search returns the k records most similar to the query vector,
	// ordered by descending cosine similarity with ties in insertion order.
	Search(ctx context.Context, name string, query []float32, k int) ([]VectorHit, error)

	// DropCollection removes the live collection. Missing collections are not an error.
	DropCollection(ctx context.Context, name string) error

	// Close releases resources.
	Close() error
}

// CollectionWriter stages records for a collection rebuild.
type CollectionWriter interface {
	// Upsert stores records in the staging collection.
	// Records keep the order they are written in; that order breaks score ties.
	Upsert(ctx context.Context, records []domain.EmbeddingRecord) error

	// Commit atomically replaces the live collection with the staged records.
	// ChunkCount and DocumentCount in info are filled in by the store.
	Commit(ctx context.Context, info domain.CollectionInfo) (*domain.CollectionInfo, error)

	// Abort discards the staged records. Safe to call after Commit.
	Abort(ctx context.Context) error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk without its embedding.
	Chunk domain.Chunk

	// Similarity is the cosine similarity score.
	Similarity float64
}
