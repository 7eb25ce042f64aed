package html

import (
	"context"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers/textnorm"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML document to a normalised document.
// Headings become "#" lines, block elements become paragraphs and table
// rows become "|"-delimited lines.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := string(raw.Content)

	title := extractHTMLTitle(rawContent, raw)
	content := stripHTML(rawContent)

	doc := textnorm.NewDocument(raw, title, content, "html")

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag   = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag       = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag        = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	navTags       = regexp.MustCompile(`(?is)<(nav|footer)[^>]*>.*?</(nav|footer)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	headingTags   = regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]\s*>`)
	tableRows     = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr\s*>`)
	tableCells    = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]\s*>`)
	tableTags     = regexp.MustCompile(`(?is)<table[^>]*>(.*?)</table\s*>`)
	blockElements = regexp.MustCompile(`(?i)</?(p|div|blockquote|pre|section|article|main|header|aside|ul|ol|dl|figure)(\s[^>]*)?>`)
	listItems     = regexp.MustCompile(`(?i)<(li|dt|dd)(\s[^>]*)?>`)
	listItemEnds  = regexp.MustCompile(`(?i)</(li|dt|dd)>`)
	brTags        = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags        = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// extractHTMLTitle extracts a title from the HTML content or falls back to filename.
func extractHTMLTitle(content string, raw *domain.RawDocument) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) > 1 {
		title := strings.TrimSpace(html.UnescapeString(matches[1]))
		if title != "" {
			return title
		}
	}

	if m := headingTags.FindStringSubmatch(content); m != nil && m[1] == "1" {
		if title := inlineText(m[2]); title != "" {
			return title
		}
	}

	return textnorm.TitleFromMetadataOrURI(raw)
}

// stripHTML removes HTML tags and extracts readable text content.
func stripHTML(content string) string {
	// Remove non-content elements entirely
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = navTags.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = headingTags.ReplaceAllStringFunc(content, func(m string) string {
		parts := headingTags.FindStringSubmatch(m)
		level, _ := strconv.Atoi(parts[1])
		text := inlineText(parts[2])
		if text == "" {
			return "\n\n"
		}
		return "\n\n" + textnorm.Heading(level, text) + "\n\n"
	})

	content = tableTags.ReplaceAllStringFunc(content, func(m string) string {
		return "\n\n" + renderTable(tableTags.FindStringSubmatch(m)[1]) + "\n\n"
	})

	content = blockElements.ReplaceAllString(content, "\n\n")
	content = listItems.ReplaceAllString(content, "\n- ")
	content = listItemEnds.ReplaceAllString(content, "")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n\n")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	// Trim each line and collapse spaces; blank lines mark paragraphs.
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
	}

	return textnorm.Tidy(strings.Join(lines, "\n"))
}

// renderTable renders each row of a table body as one "|" line.
func renderTable(body string) string {
	var rows []string
	for _, row := range tableRows.FindAllStringSubmatch(body, -1) {
		var cells []string
		for _, c := range tableCells.FindAllStringSubmatch(row[1], -1) {
			cells = append(cells, inlineText(c[1]))
		}
		if len(cells) > 0 {
			rows = append(rows, textnorm.TableRow(cells))
		}
	}
	return strings.Join(rows, "\n")
}

// inlineText flattens an HTML fragment to a single line of text.
func inlineText(fragment string) string {
	text := html.UnescapeString(allTags.ReplaceAllString(fragment, " "))
	return strings.Join(strings.Fields(text), " ")
}
