package services

import (
	"context"
	"fmt"
	"iter"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

// ChunkExtractor converts one corpus document into an ordered sequence of
// chunks: read, normalise to structured text, then run the chunking pipeline.
type ChunkExtractor struct {
	corpus   driven.Corpus
	registry driven.NormaliserRegistry
	pipeline driven.PostProcessorPipeline
}

// NewChunkExtractor creates a chunk extractor.
func NewChunkExtractor(
	corpus driven.Corpus,
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
) *ChunkExtractor {
	return &ChunkExtractor{
		corpus:   corpus,
		registry: registry,
		pipeline: pipeline,
	}
}

// Extract returns a lazy sequence of the document's chunks in source order.
// Nothing is read until the sequence is ranged over, and each range reads
// and chunks the document afresh. A failure is yielded once as an error
// wrapping domain.ErrUnsupportedType or domain.ErrParseFailed (or the read
// error) and ends the sequence.
func (e *ChunkExtractor) Extract(ctx context.Context, doc domain.Document) iter.Seq2[domain.Chunk, error] {
	return func(yield func(domain.Chunk, error) bool) {
		chunks, err := e.ExtractAll(ctx, doc)
		if err != nil {
			yield(domain.Chunk{}, err)
			return
		}
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// ExtractAll reads and chunks the document in one call.
func (e *ChunkExtractor) ExtractAll(ctx context.Context, doc domain.Document) ([]domain.Chunk, error) {
	raw, err := e.corpus.Read(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc.Path, err)
	}

	result, err := e.registry.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", doc.Path, err)
	}

	normalised := mergeNormalised(doc, result.Document)

	chunks, err := e.pipeline.Process(ctx, &normalised)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Path, err)
	}
	return chunks, nil
}

// mergeNormalised keeps the scanned identity and path and takes the parsed
// content, title and metadata.
func mergeNormalised(scanned, parsed domain.Document) domain.Document {
	out := scanned
	out.Content = parsed.Content
	if parsed.Title != "" {
		out.Title = parsed.Title
	}
	if out.MIMEType == "" {
		out.MIMEType = parsed.MIMEType
	}

	out.Metadata = make(map[string]any, len(scanned.Metadata)+len(parsed.Metadata))
	for k, v := range parsed.Metadata {
		out.Metadata[k] = v
	}
	for k, v := range scanned.Metadata {
		out.Metadata[k] = v
	}
	return out
}
