package pptx

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

const pptxMIME = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

func slideXML(paras ...string) string {
	var b bytes.Buffer
	b.WriteString(`<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody>`)
	for _, p := range paras {
		b.WriteString(`<a:p><a:r><a:t>` + p + `</a:t></a:r></a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func createTestPPTX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, body := range parts {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func normalise(t *testing.T, content []byte) (*driven.NormaliseResult, error) {
	t.Helper()
	return New().Normalise(context.Background(), &domain.RawDocument{URI: "/decks/q3_review.pptx", MIMEType: pptxMIME, Content: content})
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{pptxMIME}, New().SupportedMIMETypes())
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_SlidesInOrder(t *testing.T) {
	content := createTestPPTX(t, map[string]string{
		"ppt/slides/slide10.xml":           slideXML("Ten"),
		"ppt/slides/slide2.xml":            slideXML("Two", "Second point"),
		"ppt/slides/slide1.xml":            slideXML("Quarterly   Review"),
		"ppt/slides/_rels/slide1.xml.rels": "<Relationships/>",
	})

	result, err := normalise(t, content)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Quarterly Review\n\fTwo\n\nSecond point\n\fTen", doc.Content)
	assert.Equal(t, "Quarterly Review", doc.Title)
	assert.Equal(t, 3, doc.Metadata["slides"])
	assert.Equal(t, "pptx", doc.Metadata["format"])
}

func TestNormalise_CoreTitleWins(t *testing.T) {
	content := createTestPPTX(t, map[string]string{
		"ppt/slides/slide1.xml": slideXML("Slide text"),
		"docProps/core.xml":     `<cp:coreProperties xmlns:cp="c" xmlns:dc="d"><dc:title>Deck Title</dc:title></cp:coreProperties>`,
	})

	result, err := normalise(t, content)
	require.NoError(t, err)
	assert.Equal(t, "Deck Title", result.Document.Title)
}

func TestNormalise_Errors(t *testing.T) {
	_, err := normalise(t, []byte("junk"))
	assert.ErrorIs(t, err, domain.ErrParseFailed)

	_, err = normalise(t, createTestPPTX(t, map[string]string{"ppt/presentation.xml": "<p/>"}))
	assert.ErrorIs(t, err, domain.ErrParseFailed)

	_, err = normalise(t, createTestPPTX(t, map[string]string{"ppt/slides/slide1.xml": "<p:sld><a:p>"}))
	assert.ErrorIs(t, err, domain.ErrParseFailed)
}

func TestOrderedSlides(t *testing.T) {
	got := orderedSlides([]string{"ppt/slides/slide3.xml", "ppt/slides/slide1.xml", "ppt/slides/layout.xml"})
	assert.Equal(t, []string{"ppt/slides/slide1.xml", "ppt/slides/slide3.xml"}, got)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
}
