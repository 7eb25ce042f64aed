package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

func normalise(t *testing.T, uri, content string) domain.Document {
	t.Helper()
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:      uri,
		MIMEType: "text/markdown",
		Content:  []byte(content),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result.Document
}

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()
	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_KeepsHeadings(t *testing.T) {
	doc := normalise(t, "/docs/guide.md", "# Guide\nIntro text.\n## Install ##\nRun it.\n")

	assert.Equal(t, "Guide", doc.Title)
	assert.Equal(t, "# Guide\n\nIntro text.\n\n## Install\n\nRun it.", doc.Content)
	assert.Equal(t, "markdown", doc.Metadata["format"])
}

func TestNormalise_SetextHeadings(t *testing.T) {
	doc := normalise(t, "/a.md", "Title\n=====\n\nSection\n-------\n\nBody.")
	assert.Equal(t, "# Title\n\n## Section\n\nBody.", doc.Content)
}

func TestNormalise_InlineFormatting(t *testing.T) {
	doc := normalise(t, "/a.md",
		"Some **bold**, *italic*, __strong__ and ~~gone~~ words.\n\n"+
			"See [the docs](https://example.com) and ![logo](logo.png) `code`.\n\n"+
			"Keep snake_case_names intact.")

	assert.Contains(t, doc.Content, "Some bold, italic, strong and gone words.")
	assert.Contains(t, doc.Content, "See the docs and  code.")
	assert.Contains(t, doc.Content, "snake_case_names")
	assert.NotContains(t, doc.Content, "https://example.com")
}

func TestNormalise_CodeBlocksKeepBody(t *testing.T) {
	doc := normalise(t, "/a.md", "Before.\n\n```go\nfmt.Println(\"hi\")\n```\n\nAfter.")

	assert.Contains(t, doc.Content, "fmt.Println(\"hi\")")
	assert.NotContains(t, doc.Content, "```")
}

func TestNormalise_TablesKeepRows(t *testing.T) {
	doc := normalise(t, "/a.md", "| Name | Value |\n|------|:-----:|\n| a | 1 |\n| b | 2 |\n")

	assert.Equal(t, "| Name | Value |\n| a | 1 |\n| b | 2 |", doc.Content)
}

func TestNormalise_Lists(t *testing.T) {
	doc := normalise(t, "/a.md", "* one\n+ two\n- three\n1. four")
	assert.Equal(t, "- one\n- two\n- three\n1. four", doc.Content)
}

func TestNormalise_FrontMatter(t *testing.T) {
	doc := normalise(t, "/posts/2024-01-01-hello.md",
		"---\ntitle: Hello World\nauthor: sam\ntags: [a, b]\n---\n# Heading\n\nBody.")

	assert.Equal(t, "Hello World", doc.Title)
	assert.Equal(t, "sam", doc.Metadata["author"])
	assert.NotContains(t, doc.Metadata, "tags", "only scalar fields are copied")
	assert.NotContains(t, doc.Content, "author:")
	assert.True(t, len(doc.Content) > 0 && doc.Content[0] == '#')
}

func TestNormalise_InvalidFrontMatterKept(t *testing.T) {
	doc := normalise(t, "/a.md", "---\n: : bad [yaml\n---\nBody.")
	assert.Contains(t, doc.Content, "Body.")
}

func TestNormalise_TitleFallback(t *testing.T) {
	doc := normalise(t, "/docs/release_notes.md", "No heading here.")
	assert.Equal(t, "release notes", doc.Title)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
