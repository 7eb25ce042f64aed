// Package pdf normalises PDF documents.
//
// Text is extracted page by page with github.com/ledongthuc/pdf. Pages are
// separated by form feeds so chunk metadata can report page numbers.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// maxTitleLength bounds a first-line title guess.
const maxTitleLength = 200

// ErrNoText is returned when a PDF has pages but no extractable text,
// typically a scanned document without an OCR layer.
var ErrNoText = errors.New("pdf has no extractable text")

// Extractor pulls per-page text and the document info title from PDF bytes.
type Extractor interface {
	Extract(content []byte) (pages []string, title string, err error)
}

// Normaliser handles PDF documents.
type Normaliser struct {
	extractor Extractor
}

// New creates a new PDF normaliser backed by the pure-Go PDF reader.
func New() *Normaliser {
	return &Normaliser{extractor: readerExtractor{}}
}

// NewWithExtractor creates a normaliser with a custom extractor (for testing).
func NewWithExtractor(e Extractor) *Normaliser {
	return &Normaliser{extractor: e}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a PDF document to a normalised document.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	pages, infoTitle, err := n.extractor.Extract(raw.Content)
	if err != nil {
		return nil, textnorm.ParseError("pdf", err)
	}

	for i, p := range pages {
		pages[i] = textnorm.Tidy(strings.ReplaceAll(p, "\f", "\n"))
	}
	content := strings.Join(pages, "\n\f")
	if strings.TrimSpace(strings.ReplaceAll(content, "\f", "")) == "" && len(pages) > 0 {
		return nil, textnorm.ParseError("pdf", ErrNoText)
	}

	title := strings.TrimSpace(infoTitle)
	if title == "" {
		title = extractTitle(content, raw.URI)
	}

	doc := textnorm.NewDocument(raw, title, content, "pdf")
	doc.Metadata["pages"] = len(pages)

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractTitle uses the first reasonably short line, else the filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\f\x00"))
		if line != "" && len(line) <= maxTitleLength {
			return line
		}
	}
	return textnorm.TitleFromURI(uri)
}

// readerExtractor uses github.com/ledongthuc/pdf.
type readerExtractor struct{}

// Extract reads every page's plain text. The reader panics on some malformed
// inputs, so panics are converted to errors.
func (readerExtractor) Extract(content []byte) (pages []string, title string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, title, err = nil, "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, "", err
	}

	title = r.Trailer().Key("Info").Key("Title").Text()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return pages, title, nil
}
