package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// IndexStoreConfig configures an IndexStore.
type IndexStoreConfig struct {
	// Collection is the collection name.
	Collection string
	// BatchSize is the number of chunks embedded per request.
	BatchSize int
	// Chunking records the chunk settings a rebuild was produced with.
	Chunking domain.ChunkingSettings
}

// IndexStore is the persisted chunk collection for one corpus. It embeds
// chunks on write and queries on search, keeping vectors L2-normalised on
// both paths so cosine similarity is applied consistently.
type IndexStore struct {
	store     driven.VectorStore
	embedder  driven.EmbeddingService
	metrics   driven.MetricsRecorder
	name      string
	batchSize int
	chunking  domain.ChunkingSettings
}

// NewIndexStore creates an index store over a vector store and embedding function.
func NewIndexStore(store driven.VectorStore, embedder driven.EmbeddingService, cfg IndexStoreConfig) *IndexStore {
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultBatchSize
	}
	return &IndexStore{
		store:     store,
		embedder:  embedder,
		name:      cfg.Collection,
		batchSize: cfg.BatchSize,
		chunking:  cfg.Chunking,
	}
}

// SetMetrics sets an optional metrics recorder.
func (s *IndexStore) SetMetrics(m driven.MetricsRecorder) {
	s.metrics = m
}

// Name returns the collection name.
func (s *IndexStore) Name() string {
	return s.name
}

// Info returns the live collection metadata, or nil when no collection exists.
func (s *IndexStore) Info(ctx context.Context) (*domain.CollectionInfo, error) {
	info, err := s.store.Collection(ctx, s.name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read collection %s: %w", s.name, err)
	}
	return info, nil
}

// Exists reports whether the collection has been built, even if empty.
func (s *IndexStore) Exists(ctx context.Context) (bool, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// Count returns the number of chunks in the collection, 0 when missing.
func (s *IndexStore) Count(ctx context.Context) (int, error) {
	info, err := s.Info(ctx)
	if err != nil || info == nil {
		return 0, err
	}
	return info.ChunkCount, nil
}

// Drop removes the collection.
func (s *IndexStore) Drop(ctx context.Context) error {
	return s.store.DropCollection(ctx, s.name)
}

// CheckCompatible refuses a collection built with a different embedding
// function than the one configured now.
func (s *IndexStore) CheckCompatible(info *domain.CollectionInfo) error {
	if info == nil || s.embedder == nil {
		return nil
	}
	if model := s.embedder.ModelName(); info.EmbeddingModel != "" && model != "" && model != info.EmbeddingModel {
		return fmt.Errorf("%w: collection %q was built with %q but %q is configured; run with --rebuild",
			domain.ErrEmbeddingModelMismatch, info.Name, info.EmbeddingModel, model)
	}
	if dims := s.embedder.Dimensions(); dims > 0 && info.Dimensions > 0 && dims != info.Dimensions {
		return fmt.Errorf("%w: collection %q has %d dimensions but the embedder produces %d; run with --rebuild",
			domain.ErrDimensionMismatch, info.Name, info.Dimensions, dims)
	}
	return nil
}

// StaleChunking returns a warning when the collection was chunked with
// settings other than the configured ones, or "" when they agree.
func (s *IndexStore) StaleChunking(info *domain.CollectionInfo) string {
	if info == nil || info.ChunkSize == 0 {
		return ""
	}
	if info.ChunkSize == s.chunking.Size && info.ChunkOverlap == s.chunking.Overlap {
		return ""
	}
	return fmt.Sprintf("index was built with chunk size/overlap %d/%d but %d/%d is configured; run with --rebuild to apply",
		info.ChunkSize, info.ChunkOverlap, s.chunking.Size, s.chunking.Overlap)
}

// Search embeds the query and returns the k most similar chunks.
// Missing and empty collections return an empty result with State set and
// never call the embedding function.
func (s *IndexStore) Search(ctx context.Context, query string, k int) (*domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, k)
	}

	result := &domain.RetrievalResult{Query: query, Hits: []domain.ScoredChunk{}}

	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	result.State = info.State()
	if result.State != domain.CollectionReady {
		logger.Debug("Collection %s is %s, skipping search", s.name, result.State)
		return result, nil
	}

	if s.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	if err := s.CheckCompatible(info); err != nil {
		return nil, err
	}

	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	vector := vectors[0]
	if len(vector) != info.Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(vector), info.Dimensions)
	}

	hits, err := s.store.Search(ctx, s.name, domain.NormalizeVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("search collection %s: %w", s.name, err)
	}

	for _, h := range hits {
		result.Hits = append(result.Hits, domain.ScoredChunk{Chunk: h.Chunk, Score: h.Similarity})
	}
	logger.Debug("Search returned %d hits (k=%d)", len(result.Hits), k)
	return result, nil
}

// BeginRebuild starts writing a replacement collection. The live collection
// stays readable until Commit.
func (s *IndexStore) BeginRebuild(ctx context.Context) (*Rebuild, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	w, err := s.store.BeginCollection(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("begin collection %s: %w", s.name, err)
	}
	return &Rebuild{
		store:     s,
		writer:    w,
		dims:      s.embedder.Dimensions(),
		documents: make(map[string]struct{}),
	}, nil
}

// embed calls the embedding function once and checks the response shape.
func (s *IndexStore) embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if s.metrics != nil {
		s.metrics.ObserveEmbedding(len(texts), time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts",
			domain.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}

// Rebuild is an in-progress replacement of the collection.
// A Rebuild is used from one goroutine.
type Rebuild struct {
	store     *IndexStore
	writer    driven.CollectionWriter
	dims      int
	chunks    int
	documents map[string]struct{}
	done      bool
}

// Upsert embeds chunks in batches and stages them. Any embedding failure
// aborts the call; nothing from a failed batch is staged.
func (r *Rebuild) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if r.done {
		return errors.New("rebuild already finished")
	}

	for start := 0; start < len(chunks); start += r.store.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := chunks[start:min(start+r.store.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := r.store.embed(ctx, texts)
		if err != nil {
			return err
		}

		records := make([]domain.EmbeddingRecord, len(batch))
		for i, c := range batch {
			v := vectors[i]
			if r.dims == 0 {
				r.dims = len(v)
			}
			if len(v) != r.dims || len(v) == 0 {
				return fmt.Errorf("%w: chunk %s has %d dimensions, expected %d",
					domain.ErrDimensionMismatch, c.ID, len(v), r.dims)
			}
			c.Embedding = nil
			records[i] = domain.EmbeddingRecord{Chunk: c, Vector: domain.NormalizeVector(v)}
			r.documents[c.DocumentID] = struct{}{}
		}

		if err := r.writer.Upsert(ctx, records); err != nil {
			return fmt.Errorf("stage %d records: %w", len(records), err)
		}
		r.chunks += len(records)
	}
	return nil
}

// Chunks returns the number of chunks staged so far.
func (r *Rebuild) Chunks() int {
	return r.chunks
}

// Commit replaces the live collection with the staged chunks.
func (r *Rebuild) Commit(ctx context.Context) (*domain.CollectionInfo, error) {
	if r.done {
		return nil, errors.New("rebuild already finished")
	}

	info := domain.CollectionInfo{
		Name:           r.store.name,
		EmbeddingModel: r.store.embedder.ModelName(),
		Dimensions:     r.dims,
		ChunkSize:      r.store.chunking.Size,
		ChunkOverlap:   r.store.chunking.Overlap,
		ChunkCount:     r.chunks,
		DocumentCount:  len(r.documents),
		BuiltAt:        time.Now().UTC(),
	}

	committed, err := r.writer.Commit(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("commit collection %s: %w", r.store.name, err)
	}
	r.done = true
	return committed, nil
}

// Abort discards the staged chunks. Safe to call after Commit.
func (r *Rebuild) Abort(ctx context.Context) error {
	if r.done {
		return nil
	}
	r.done = true
	return r.writer.Abort(ctx)
}
