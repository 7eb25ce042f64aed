package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(documentXML, coreXML string) []byte {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	contentTypes, _ := w.Create("[Content_Types].xml")
	contentTypes.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`))

	if documentXML != "" {
		doc, _ := w.Create("word/document.xml")
		doc.Write([]byte(documentXML))
	}

	if coreXML != "" {
		core, _ := w.Create("docProps/core.xml")
		core.Write([]byte(coreXML))
	}

	w.Close()
	return buf.Bytes()
}

func wrapBody(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body + `</w:body>
</w:document>`
}

func normalise(t *testing.T, uri string, content []byte) (*driven.NormaliseResult, error) {
	t.Helper()
	return New().Normalise(context.Background(), &domain.RawDocument{URI: uri, MIMEType: docxMIME, Content: content})
}

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()
	assert.Equal(t, []string{docxMIME}, mimeTypes)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	coreXML := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Test Document</dc:title>
</cp:coreProperties>`

	result, err := normalise(t, "/path/to/document.docx",
		createTestDOCX(wrapBody(`<w:p><w:r><w:t>Hello World</w:t></w:r></w:p>`), coreXML))
	require.NoError(t, err)
	require.NotNil(t, result)

	doc := result.Document
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "/path/to/document.docx", doc.URI)
	assert.Equal(t, "Test Document", doc.Title)
	assert.Equal(t, "Hello World", doc.Content)
	assert.Equal(t, docxMIME, doc.Metadata["mime_type"])
	assert.Equal(t, "docx", doc.Metadata["format"])
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_InvalidZip(t *testing.T) {
	result, err := normalise(t, "/path/to/invalid.docx", []byte("not a zip file"))
	assert.ErrorIs(t, err, domain.ErrParseFailed)
	assert.Nil(t, result)
}

func TestNormalise_MissingDocumentPart(t *testing.T) {
	result, err := normalise(t, "/path/to/empty.docx", createTestDOCX("", ""))
	assert.ErrorIs(t, err, domain.ErrParseFailed)
	assert.Nil(t, result)
}

func TestNormalise_MalformedXML(t *testing.T) {
	result, err := normalise(t, "/bad.docx", createTestDOCX(`<w:document><w:body><w:p>`, ""))
	assert.ErrorIs(t, err, domain.ErrParseFailed)
	assert.Nil(t, result)
}

func TestNormalise_TitleFallbackToFilename(t *testing.T) {
	result, err := normalise(t, "/path/to/my_document.docx",
		createTestDOCX(wrapBody(`<w:p><w:r><w:t>Content</w:t></w:r></w:p>`), ""))
	require.NoError(t, err)
	assert.Equal(t, "my document", result.Document.Title)
}

func TestNormalise_ParagraphsAndRuns(t *testing.T) {
	body := `<w:p><w:r><w:t>First </w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>paragraph</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second</w:t><w:tab/><w:t>paragraph</w:t></w:r></w:p>`

	result, err := normalise(t, "/doc.docx", createTestDOCX(wrapBody(body), ""))
	require.NoError(t, err)
	assert.Equal(t, "First paragraph\n\nSecond paragraph", result.Document.Content)
}

func TestNormalise_Headings(t *testing.T) {
	body := `<w:p><w:pPr><w:pStyle w:val="Title"/></w:pPr><w:r><w:t>Handbook</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Leave policy</w:t></w:r></w:p>
<w:p><w:r><w:t>Staff get 25 days.</w:t></w:r></w:p>`

	result, err := normalise(t, "/doc.docx", createTestDOCX(wrapBody(body), ""))
	require.NoError(t, err)
	assert.Equal(t, "# Handbook\n\n## Leave policy\n\nStaff get 25 days.", result.Document.Content)
}

func TestNormalise_Tables(t *testing.T) {
	body := `<w:p><w:r><w:t>Rates</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Grade</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Rate</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>10</w:t></w:r></w:p><w:p><w:r><w:t>per hour</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>End.</w:t></w:r></w:p>`

	result, err := normalise(t, "/doc.docx", createTestDOCX(wrapBody(body), ""))
	require.NoError(t, err)
	assert.Equal(t, "Rates\n\n| Grade | Rate |\n| A | 10 per hour |\n\nEnd.", result.Document.Content)
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 1, headingLevel("Heading1"))
	assert.Equal(t, 3, headingLevel("heading 3"))
	assert.Equal(t, 0, headingLevel("Heading9"))
	assert.Equal(t, 0, headingLevel("Normal"))
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
