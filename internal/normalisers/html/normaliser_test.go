package html

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
		MIMEType: "text/html",
		Content:  []byte(content),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result.Document
}

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/html")
	assert.Contains(t, mimeTypes, "application/xhtml+xml")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_Success(t *testing.T) {
	doc := normalise(t, "/path/to/document.html",
		"<html><head><title>Test Page</title></head><body><p>Hello World</p></body></html>")

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "/path/to/document.html", doc.URI)
	assert.Equal(t, "Test Page", doc.Title)
	assert.Equal(t, "Hello World", doc.Content)
	assert.Equal(t, "html", doc.Metadata["format"])
}

func TestNormalise_HeadingsAndParagraphs(t *testing.T) {
	doc := normalise(t, "/a.html", `<body>
<h1>Guide</h1>
<p>First   paragraph
  continues.</p>
<h2 class="x">Install <em>now</em></h2>
<div>Second paragraph.</div>
</body>`)

	assert.Equal(t, "# Guide\n\nFirst paragraph\ncontinues.\n\n## Install now\n\nSecond paragraph.", doc.Content)
}

func TestNormalise_Tables(t *testing.T) {
	doc := normalise(t, "/a.html", `<p>Prices:</p>
<table>
  <tr><th>Item</th><th>Cost</th></tr>
  <tr><td>Tea</td><td>&pound;2</td></tr>
</table>
<p>After.</p>`)

	assert.Equal(t, "Prices:\n\n| Item | Cost |\n| Tea | £2 |\n\nAfter.", doc.Content)
}

func TestNormalise_Lists(t *testing.T) {
	doc := normalise(t, "/a.html", "<ul><li>one</li><li>two</li></ul>")
	assert.Equal(t, "- one\n- two", doc.Content)
}

func TestNormalise_StripsNonContent(t *testing.T) {
	doc := normalise(t, "/a.html", `<html><head><style>p{}</style></head><body>
<nav>Home | About</nav>
<script>alert("x")</script>
<!-- hidden -->
<p>Visible &amp; kept</p>
<footer>Copyright</footer>
</body></html>`)

	assert.Equal(t, "Visible & kept", doc.Content)
}

func TestNormalise_TitleFallbacks(t *testing.T) {
	assert.Equal(t, "From H1", normalise(t, "/a.html", "<h1>From <b>H1</b></h1><p>x</p>").Title)
	assert.Equal(t, "my page", normalise(t, "/docs/my_page.html", "<p>x</p>").Title)
	assert.Equal(t, "Tom & Jerry", normalise(t, "/a.html", "<title> Tom &amp; Jerry </title>").Title)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
