// Package plaintext normalises plain text and source-like files.
package plaintext

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/x-rst",
		"text/x-log",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts a raw document to a normalised document.
// Text is kept as-is apart from line-ending and blank-line cleanup.
// Content with NUL bytes is treated as binary and rejected.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	if bytes.IndexByte(raw.Content, 0) >= 0 {
		return nil, textnorm.ParseError("text", errors.New("binary content"))
	}

	content := strings.ToValidUTF8(string(raw.Content), "�")
	content = textnorm.Tidy(content)

	doc := textnorm.NewDocument(raw, textnorm.TitleFromMetadataOrURI(raw), content, "text")

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}
