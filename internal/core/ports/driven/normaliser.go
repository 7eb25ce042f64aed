package driven

import (
	"context"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// Normaliser transforms raw documents into text.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
//
// Normalisers keep structure the chunker can split on: headings as
// "#"-prefixed lines, paragraphs separated by blank lines, tables as
// "|"-delimited rows and pages separated by form feeds.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise transforms a raw document into a document with content.
	// Returns an error wrapping domain.ErrParseFailed for corrupt input.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Note: Normalisation only produces a Document with Content.
// Chunking is handled by the PostProcessor pipeline.
type NormaliseResult struct {
	// Document is the normalised document with Content field populated.
	Document domain.Document
}
