// Package xlsx normalises Excel (XLSX) workbooks.
//
// Each sheet becomes a "## <sheet>" section followed by its non-empty rows
// rendered as "|"-delimited table lines.
package xlsx

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// DefaultMaxRows caps rows read per sheet.
const DefaultMaxRows = 10000

// Normaliser handles XLSX workbooks.
type Normaliser struct {
	maxRows int
}

// New creates a new XLSX normaliser.
func New() *Normaliser {
	return &Normaliser{maxRows: DefaultMaxRows}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise converts a workbook to a normalised document.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, textnorm.ParseError("xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, textnorm.ParseError("xlsx", errors.New("workbook has no sheets"))
	}

	var blocks []string
	truncated := false
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, textnorm.ParseError("xlsx", err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			if len(lines) >= n.maxRows {
				truncated = true
				break
			}
			if cells := trimRow(row); len(cells) > 0 {
				lines = append(lines, textnorm.TableRow(cells))
			}
		}
		if len(lines) == 0 {
			continue
		}

		blocks = append(blocks, textnorm.Heading(2, sheet), strings.Join(lines, "\n"))
	}

	title := ""
	if props, err := f.GetDocProps(); err == nil && props != nil {
		title = strings.TrimSpace(props.Title)
	}
	if title == "" {
		title = textnorm.TitleFromMetadataOrURI(raw)
	}

	doc := textnorm.NewDocument(raw, title, strings.Join(blocks, "\n\n"), "xlsx")
	doc.Metadata["sheets"] = len(sheets)
	if truncated {
		doc.Metadata["truncated"] = true
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// trimRow drops trailing empty cells; an all-empty row yields nil.
func trimRow(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	if end == 0 {
		return nil
	}
	return row[:end]
}
