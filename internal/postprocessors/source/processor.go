// Package source attaches originating-document metadata to chunks.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// Processor copies the document's file name, path and extension onto each
// chunk so citations survive without a document lookup.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a source metadata processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "source"
}

// Process annotates chunks in place and returns them.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	path := doc.Path
	if path == "" {
		path = doc.URI
	}
	name := doc.Title
	if path != "" {
		name = filepath.Base(path)
	}
	ext := strings.ToLower(filepath.Ext(path))

	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		if name != "" {
			chunks[i].Metadata[domain.MetaSourceFile] = name
		}
		if path != "" {
			chunks[i].Metadata[domain.MetaSourcePath] = path
		}
		if ext != "" {
			chunks[i].Metadata[domain.MetaExtension] = ext
		}
	}

	return chunks, nil
}
