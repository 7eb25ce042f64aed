// Package markdown normalises Markdown documents.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts a markdown document to a normalised document.
// Inline formatting is removed while headings, paragraphs, lists and tables
// keep their line structure.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	body, front := splitFrontMatter(strings.ReplaceAll(string(raw.Content), "\r\n", "\n"))

	content := stripMarkdown(body)
	title := extractMarkdownTitle(front, content, raw)

	doc := textnorm.NewDocument(raw, title, content, "markdown")
	for k, v := range front {
		if _, taken := doc.Metadata[k]; !taken {
			doc.Metadata[k] = v
		}
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

var frontMatter = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n?`)

// splitFrontMatter removes a leading YAML front matter block. Scalar values
// are returned; unparseable blocks are left in the body.
func splitFrontMatter(content string) (string, map[string]any) {
	m := frontMatter.FindStringSubmatchIndex(content)
	if m == nil {
		return content, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(content[m[2]:m[3]]), &fields); err != nil {
		return content, nil
	}

	scalars := make(map[string]any, len(fields))
	for k, v := range fields {
		switch v.(type) {
		case string, int, int64, float64, bool:
			scalars[k] = v
		}
	}
	return content[m[1]:], scalars
}

// extractMarkdownTitle prefers a front matter title, then the first H1, then
// the filename.
func extractMarkdownTitle(front map[string]any, content string, raw *domain.RawDocument) string {
	if title, ok := front["title"].(string); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	return textnorm.TitleFromMetadataOrURI(raw)
}

// Pre-compiled regular expressions for markdown cleanup.
var (
	codeFence     = regexp.MustCompile("(?m)^[ \t]*(```|~~~)[^\n]*\n?")
	inlineCode    = regexp.MustCompile("`([^`\n]+)`")
	images        = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinks      = regexp.MustCompile(`\[([^\]]+)\]\[[^\]]*\]`)
	linkDefs      = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]+\]:\s+\S+.*$`)
	atxHeading    = regexp.MustCompile(`(?m)^[ \t]{0,3}(#{1,6})[ \t]+(.*?)[ \t]*#*[ \t]*$`)
	setextH1      = regexp.MustCompile(`(?m)^([^\n#|>-][^\n]*)\n=+[ \t]*$`)
	setextH2      = regexp.MustCompile(`(?m)^([^\n#|>-][^\n]*)\n-{2,}[ \t]*$`)
	boldStars     = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldUnders    = regexp.MustCompile(`\b__([^_\n]+)__\b`)
	italicStar    = regexp.MustCompile(`\*([^*\s][^*\n]*)\*`)
	italicUnder   = regexp.MustCompile(`\b_([^_\s][^_\n]*)_\b`)
	strike        = regexp.MustCompile(`~~([^~\n]+)~~`)
	blockquote    = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	horizontal    = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	tableDivider  = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*\n`)
	htmlTags      = regexp.MustCompile(`</?[a-zA-Z][^>\n]*>`)
	starBullets   = regexp.MustCompile(`(?m)^([ \t]*)[*+][ \t]+`)
	headingMarker = regexp.MustCompile(`(?m)^#{1,6} `)
)

// stripMarkdown removes inline markdown formatting. Heading lines are
// normalised to "# Title" form, tables keep their "|" rows and code block
// bodies are kept without their fences.
func stripMarkdown(content string) string {
	content = codeFence.ReplaceAllString(content, "")

	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = refLinks.ReplaceAllString(content, "$1")
	content = linkDefs.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")

	content = setextH1.ReplaceAllString(content, "# $1")
	content = setextH2.ReplaceAllString(content, "## $1")
	content = atxHeading.ReplaceAllString(content, "$1 $2")

	content = tableDivider.ReplaceAllString(content, "")
	content = horizontal.ReplaceAllString(content, "")
	content = starBullets.ReplaceAllString(content, "$1- ")

	content = boldStars.ReplaceAllString(content, "$1")
	content = boldUnders.ReplaceAllString(content, "$1")
	content = italicStar.ReplaceAllString(content, "$1")
	content = italicUnder.ReplaceAllString(content, "$1")
	content = strike.ReplaceAllString(content, "$1")

	content = blockquote.ReplaceAllString(content, "")
	content = htmlTags.ReplaceAllString(content, "")

	return textnorm.Tidy(ensureHeadingSpacing(content))
}

// ensureHeadingSpacing puts a blank line before and after every heading so
// the chunker sees each heading as its own block.
func ensureHeadingSpacing(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)+8)
	for i, line := range lines {
		isHeading := headingMarker.MatchString(line)
		if isHeading && len(out) > 0 && out[len(out)-1] != "" {
			out = append(out, "")
		}
		out = append(out, line)
		if isHeading && i+1 < len(lines) && lines[i+1] != "" {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}
