package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// errWriterClosed is returned by a writer used after Commit or Abort.
var errWriterClosed = errors.New("collection writer closed")

// collection is a committed set of records. It is never mutated after commit.
type collection struct {
	info    domain.CollectionInfo
	records []domain.EmbeddingRecord
}

// VectorStore is an in-memory implementation of driven.VectorStore.
// Commits swap the collection pointer, so readers see the old or the new
// collection and never a partial one. Contents are lost on exit.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		collections: make(map[string]*collection),
	}
}

// Collection returns metadata for the live collection.
func (s *VectorStore) Collection(_ context.Context, name string) (*domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	info := c.info
	return &info, nil
}

// BeginCollection starts a staged replacement of the named collection.
func (s *VectorStore) BeginCollection(_ context.Context, name string) (driven.CollectionWriter, error) {
	return &collectionWriter{store: s, name: name}, nil
}

// Search scans the collection and returns the k most similar records.
func (s *VectorStore) Search(_ context.Context, name string, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, domain.ErrInvalidTopK
	}

	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.info.Dimensions > 0 && len(query) != c.info.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(query), c.info.Dimensions)
	}

	hits := make([]driven.VectorHit, len(c.records))
	for i, r := range c.records {
		hits[i] = driven.VectorHit{
			Chunk:      copyChunk(r.Chunk),
			Similarity: domain.CosineSimilarity(query, r.Vector),
		}
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DropCollection removes the live collection.
func (s *VectorStore) DropCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

// collectionWriter buffers records until Commit.
type collectionWriter struct {
	store   *VectorStore
	name    string
	dims    int
	records []domain.EmbeddingRecord
	index   map[string]int // chunk ID -> position in records
	closed  bool
}

// Upsert buffers records. A record whose chunk ID is already staged replaces it in place.
func (w *collectionWriter) Upsert(_ context.Context, records []domain.EmbeddingRecord) error {
	if w.closed {
		return errWriterClosed
	}
	for _, r := range records {
		if w.dims == 0 {
			w.dims = len(r.Vector)
		}
		if len(r.Vector) != w.dims {
			return fmt.Errorf("%w: record %s has %d dimensions, expected %d",
				domain.ErrDimensionMismatch, r.Chunk.ID, len(r.Vector), w.dims)
		}

		stored := domain.EmbeddingRecord{
			Chunk:  copyChunk(r.Chunk),
			Vector: append([]float32(nil), r.Vector...),
		}
		if w.index == nil {
			w.index = make(map[string]int)
		}
		if i, ok := w.index[stored.Chunk.ID]; ok {
			w.records[i] = stored
			continue
		}
		w.index[stored.Chunk.ID] = len(w.records)
		w.records = append(w.records, stored)
	}
	return nil
}

// Commit replaces the live collection.
func (w *collectionWriter) Commit(_ context.Context, info domain.CollectionInfo) (*domain.CollectionInfo, error) {
	if w.closed {
		return nil, errWriterClosed
	}
	w.closed = true

	docs := make(map[string]struct{})
	for _, r := range w.records {
		docs[r.Chunk.DocumentID] = struct{}{}
	}
	info.Name = w.name
	info.ChunkCount = len(w.records)
	info.DocumentCount = len(docs)
	if w.dims > 0 {
		info.Dimensions = w.dims
	}

	w.store.mu.Lock()
	w.store.collections[w.name] = &collection{info: info, records: w.records}
	w.store.mu.Unlock()

	w.records, w.index = nil, nil
	return &info, nil
}

// Abort discards the buffered records.
func (w *collectionWriter) Abort(_ context.Context) error {
	w.closed = true
	w.records, w.index = nil, nil
	return nil
}

func copyChunk(c domain.Chunk) domain.Chunk {
	out := c
	out.Embedding = nil
	if c.Metadata != nil {
		out.Metadata = maps.Clone(c.Metadata)
	}
	return out
}
