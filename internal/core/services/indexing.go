package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
	"github.com/custodia-labs/docusearch/internal/logger"
)

// Ensure IndexingPipeline implements the interface.
var _ driving.IndexingService = (*IndexingPipeline)(nil)

// IndexingPipeline scans a corpus, extracts chunks from every document and
// writes them to the index store as one atomic collection replacement.
type IndexingPipeline struct {
	mu        sync.Mutex
	corpus    driven.Corpus
	extractor *ChunkExtractor
	index     *IndexStore
	settings  domain.Settings
	metrics   driven.MetricsRecorder
}

// NewIndexingPipeline creates an indexing pipeline.
func NewIndexingPipeline(
	corpus driven.Corpus,
	extractor *ChunkExtractor,
	index *IndexStore,
	settings domain.Settings,
) *IndexingPipeline {
	return &IndexingPipeline{
		corpus:    corpus,
		extractor: extractor,
		index:     index,
		settings:  settings,
	}
}

// SetMetrics sets an optional metrics recorder.
func (p *IndexingPipeline) SetMetrics(m driven.MetricsRecorder) {
	p.metrics = m
}

// Status returns the live collection metadata, or nil when none exists.
func (p *IndexingPipeline) Status(ctx context.Context) (*domain.CollectionInfo, error) {
	return p.index.Info(ctx)
}

// Watch reports changes under the configured corpus root.
func (p *IndexingPipeline) Watch(ctx context.Context) (<-chan domain.CorpusChange, error) {
	return p.corpus.Watch(ctx, p.settings.Corpus.Path)
}

// Build indexes the corpus. Builds are serialised.
func (p *IndexingPipeline) Build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	result, err := p.build(ctx, req)
	if result != nil {
		result.Duration = time.Since(start)
	}
	if p.metrics != nil {
		p.metrics.ObserveBuild(result, err)
	}
	return result, err
}

func (p *IndexingPipeline) build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	logger.Section("Build")

	if err := p.settings.Validate(); err != nil {
		return nil, err
	}

	root := req.CorpusPath
	if root == "" {
		root = p.settings.Corpus.Path
	}
	logger.Debug("Corpus: %s, rebuild: %t, collection: %s", root, req.Rebuild, p.index.Name())

	existing, err := p.index.Info(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil && !req.Rebuild {
		return p.reuse(existing)
	}

	scan, err := p.corpus.Scan(ctx, root, p.settings.Corpus.Extensions)
	if err != nil {
		return nil, err
	}
	logger.Info("Found %d documents (%d other files ignored)", len(scan.Documents), scan.Ignored)

	rebuild, err := p.index.BeginRebuild(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := rebuild.Abort(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to discard staged collection: %v", err)
		}
	}()

	result := &domain.BuildResult{
		DocumentsIgnored: scan.Ignored,
		Outcomes:         make([]domain.DocumentOutcome, 0, len(scan.Documents)),
	}

	for i, doc := range scan.Documents {
		outcome, err := p.indexDocument(ctx, rebuild, doc)
		if err != nil {
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Skipped() {
			result.DocumentsSkipped++
		} else {
			result.DocumentsIndexed++
		}

		if req.Progress != nil {
			req.Progress(domain.BuildProgress{
				Processed: i + 1,
				Total:     len(scan.Documents),
				Skipped:   result.DocumentsSkipped,
				Current:   doc.Path,
			})
		}
	}

	info, err := rebuild.Commit(ctx)
	if err != nil {
		return nil, err
	}
	committed = true

	result.ChunksWritten = info.ChunkCount
	result.Collection = info
	logger.Info("Indexed %d chunks from %d documents (%d skipped)",
		info.ChunkCount, result.DocumentsIndexed, result.DocumentsSkipped)
	return result, nil
}

// reuse reports an existing collection without embedding anything.
func (p *IndexingPipeline) reuse(info *domain.CollectionInfo) (*domain.BuildResult, error) {
	if err := p.index.CheckCompatible(info); err != nil {
		return nil, err
	}

	logger.Info("Index already exists with %d chunks, skipping build", info.ChunkCount)
	result := &domain.BuildResult{
		ChunksWritten:  info.ChunkCount,
		ShortCircuited: true,
		Collection:     info,
	}
	if warning := p.index.StaleChunking(info); warning != "" {
		logger.Warn("%s", warning)
		result.Warnings = append(result.Warnings, warning)
	}
	return result, nil
}

// indexDocument extracts one document and stages its chunks. Extraction
// failures become a skipped outcome; staging failures and cancellation are
// returned as errors and end the build.
func (p *IndexingPipeline) indexDocument(
	ctx context.Context, rebuild *Rebuild, doc domain.Document,
) (domain.DocumentOutcome, error) {
	outcome := domain.DocumentOutcome{Path: doc.Path}

	var chunks []domain.Chunk
	for chunk, err := range p.extractor.Extract(ctx, doc) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
				return outcome, errors.Join(ctxErr, err)
			}
			logger.Warn("Skipping %s: %v", doc.Path, err)
			outcome.Err = err
			return outcome, nil
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) > 0 {
		if err := rebuild.Upsert(ctx, chunks); err != nil {
			return outcome, err
		}
	}

	logger.Debug("%s: %d chunks", doc.Path, len(chunks))
	outcome.Chunks = len(chunks)
	return outcome, nil
}
