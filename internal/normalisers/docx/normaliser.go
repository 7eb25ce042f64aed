// Package docx normalises Word (DOCX) documents.
package docx

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/ooxml"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const documentPart = "word/document.xml"

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise converts a DOCX document to a normalised document.
// Heading styles become "#" lines and tables become "|" rows.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	pkg, err := ooxml.Open(raw.Content)
	if err != nil {
		return nil, textnorm.ParseError("docx", err)
	}
	if !pkg.Has(documentPart) {
		return nil, textnorm.ParseError("docx", errors.New("missing "+documentPart))
	}

	body, err := pkg.ReadPart(documentPart)
	if err != nil {
		return nil, textnorm.ParseError("docx", err)
	}

	content, err := parseDocumentXML(body)
	if err != nil {
		return nil, textnorm.ParseError("docx", err)
	}

	title := pkg.Title()
	if title == "" {
		title = textnorm.TitleFromMetadataOrURI(raw)
	}

	doc := textnorm.NewDocument(raw, title, content, "docx")

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// walker accumulates blocks while streaming document.xml.
type walker struct {
	blocks []string

	para       strings.Builder
	inPara     bool
	inText     bool
	headingLvl int

	tableDepth int
	rows       []string
	cells      []string
	cell       strings.Builder
}

// parseDocumentXML extracts structured text from the document XML.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	w := &walker{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText {
				w.para.Write(t)
			}
		}
	}

	return textnorm.Tidy(strings.Join(w.blocks, "\n\n")), nil
}

func (w *walker) start(el xml.StartElement) {
	switch el.Name.Local {
	case "p":
		w.inPara = true
		w.headingLvl = 0
		w.para.Reset()
	case "pStyle":
		w.headingLvl = headingLevel(ooxml.AttrValue(el, "val"))
	case "t":
		w.inText = true
	case "tab":
		if w.inPara {
			w.para.WriteByte(' ')
		}
	case "br", "cr":
		if w.inPara {
			w.para.WriteByte('\n')
		}
	case "tbl":
		w.tableDepth++
		if w.tableDepth == 1 {
			w.rows = nil
		}
	case "tr":
		if w.tableDepth == 1 {
			w.cells = nil
		}
	case "tc":
		if w.tableDepth == 1 {
			w.cell.Reset()
		}
	}
}

func (w *walker) end(el xml.EndElement) {
	switch el.Name.Local {
	case "t":
		w.inText = false
	case "p":
		w.inPara = false
		text := strings.TrimSpace(w.para.String())
		if text == "" {
			return
		}
		if w.tableDepth > 0 {
			if w.cell.Len() > 0 {
				w.cell.WriteByte(' ')
			}
			w.cell.WriteString(text)
			return
		}
		if w.headingLvl > 0 {
			text = textnorm.Heading(w.headingLvl, strings.Join(strings.Fields(text), " "))
		}
		w.blocks = append(w.blocks, text)
	case "tc":
		if w.tableDepth == 1 {
			w.cells = append(w.cells, w.cell.String())
		}
	case "tr":
		if w.tableDepth == 1 && len(w.cells) > 0 {
			w.rows = append(w.rows, textnorm.TableRow(w.cells))
		}
	case "tbl":
		w.tableDepth--
		if w.tableDepth == 0 && len(w.rows) > 0 {
			w.blocks = append(w.blocks, strings.Join(w.rows, "\n"))
		}
	}
}

// headingLevel maps paragraph style IDs such as "Heading2" or "Title".
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title":
		return 1
	case strings.HasPrefix(s, "heading"):
		if n, err := strconv.Atoi(strings.TrimPrefix(s, "heading")); err == nil && n >= 1 && n <= 6 {
			return n
		}
	}
	return 0
}
