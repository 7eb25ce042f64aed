package normalisers

import (
	"github.com/custodia-labs/docusearch/internal/normalisers/docx"
	"github.com/custodia-labs/docusearch/internal/normalisers/html"
	"github.com/custodia-labs/docusearch/internal/normalisers/markdown"
	"github.com/custodia-labs/docusearch/internal/normalisers/pdf"
	"github.com/custodia-labs/docusearch/internal/normalisers/plaintext"
	"github.com/custodia-labs/docusearch/internal/normalisers/pptx"
	"github.com/custodia-labs/docusearch/internal/normalisers/xlsx"
)

// RegisterDefaults registers all built-in normalisers with the registry.
// Legacy binary Office formats (.doc, .ppt) have no normaliser and are
// reported as unsupported.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pptx.New())
	r.Register(xlsx.New())
	r.Register(pdf.New())
}

// NewDefaultRegistry returns a registry with all built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}
