// Package textnorm holds helpers shared by the format normalisers.
package textnorm

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

var (
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// NewDocument builds a normalised document from raw input.
func NewDocument(raw *domain.RawDocument, title, content, format string) domain.Document {
	doc := domain.Document{
		ID:       uuid.New().String(),
		Path:     raw.URI,
		URI:      raw.URI,
		Title:    title,
		MIMEType: raw.MIMEType,
		Size:     int64(len(raw.Content)),
		Content:  content,
		Metadata: CopyMetadata(raw.Metadata),
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	if format != "" {
		doc.Metadata["format"] = format
	}
	return doc
}

// TitleFromURI extracts a human-readable title from a file path.
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// TitleFromMetadataOrURI prefers a scanner-provided title.
func TitleFromMetadataOrURI(raw *domain.RawDocument) string {
	if title, ok := raw.Metadata["title"].(string); ok && title != "" {
		return title
	}
	return TitleFromURI(raw.URI)
}

// FirstLine returns the first non-blank line, or "" when there is none.
func FirstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\f"))
		if line != "" {
			return line
		}
	}
	return ""
}

// Tidy normalises line endings, strips trailing spaces and collapses runs of
// blank lines so that exactly one blank line separates paragraphs.
func Tidy(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = trailingSpace.ReplaceAllString(content, "")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.Trim(content, " \t\n")
}

// Heading renders a heading line at the given level (1-6).
func Heading(level int, title string) string {
	level = max(1, min(level, 6))
	return strings.Repeat("#", level) + " " + strings.TrimSpace(title)
}

// TableRow renders cells as a "|"-delimited row.
func TableRow(cells []string) string {
	clean := make([]string, len(cells))
	for i, c := range cells {
		clean[i] = strings.Join(strings.Fields(strings.ReplaceAll(c, "|", "/")), " ")
	}
	return "| " + strings.Join(clean, " | ") + " |"
}

// ParseError wraps a format failure as domain.ErrParseFailed.
func ParseError(format string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", domain.ErrParseFailed, format)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrParseFailed, format, err)
}

// CopyMetadata creates a shallow copy of metadata.
func CopyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
