// Package pptx normalises PowerPoint (PPTX) presentations.
//
// Each slide becomes one page: slides are separated by form feeds so chunk
// page metadata reports the slide number. Paragraphs within a slide are
// separated by blank lines.
package pptx

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/ooxml"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Normaliser handles PPTX presentations.
type Normaliser struct{}

// New creates a new PPTX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a PPTX presentation to a normalised document.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	pkg, err := ooxml.Open(raw.Content)
	if err != nil {
		return nil, textnorm.ParseError("pptx", err)
	}

	slides := orderedSlides(pkg.Names("ppt/slides/", ".xml"))
	if len(slides) == 0 {
		return nil, textnorm.ParseError("pptx", errors.New("no slides"))
	}

	pages := make([]string, 0, len(slides))
	for _, name := range slides {
		data, err := pkg.ReadPart(name)
		if err != nil {
			return nil, textnorm.ParseError("pptx", err)
		}
		text, err := slideText(data)
		if err != nil {
			return nil, textnorm.ParseError("pptx", err)
		}
		pages = append(pages, text)
	}

	title := pkg.Title()
	if title == "" {
		title = textnorm.FirstLine(pages[0])
	}
	if title == "" {
		title = textnorm.TitleFromMetadataOrURI(raw)
	}

	doc := textnorm.NewDocument(raw, title, strings.Join(pages, "\n\f"), "pptx")
	doc.Metadata["slides"] = len(pages)

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// orderedSlides filters slide parts and sorts them by slide number.
func orderedSlides(names []string) []string {
	type slide struct {
		name string
		num  int
	}
	var slides []slide
	for _, name := range names {
		m := slidePart.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{name: name, num: num})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	out := make([]string, len(slides))
	for i, s := range slides {
		out[i] = s.name
	}
	return out
}

// slideText extracts paragraph text from a slide's DrawingML.
func slideText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		paras  []string
		para   strings.Builder
		inText bool
	)

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
			switch t.Name.Local {
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "br":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.Join(strings.Fields(para.String()), " "); text != "" {
					paras = append(paras, text)
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}

	return strings.Join(paras, "\n\n"), nil
}
