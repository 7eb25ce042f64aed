package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

func scanOne(t *testing.T, corpus *mockCorpus) domain.Document {
	t.Helper()
	scan, err := corpus.Scan(context.Background(), "/corpus", domain.DefaultExtensions())
	require.NoError(t, err)
	require.Len(t, scan.Documents, 1)
	return scan.Documents[0]
}

func TestChunkExtractor_ExtractAll(t *testing.T) {
	corpus := newMockCorpus(map[string]string{"guide.md": corpusA["guide.md"]})
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 200, Overlap: 20})
	doc := scanOne(t, corpus)

	chunks, err := e.ExtractAll(context.Background(), doc)

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	c := chunks[0]
	assert.Equal(t, "guide.md", c.DocumentID)
	assert.Equal(t, 0, c.Position)
	assert.Equal(t, "guide.md", c.SourceFile())
	assert.Equal(t, "/corpus/guide.md", c.SourcePath())
	assert.Equal(t, "Alpha", c.Heading())
	assert.Contains(t, c.Content, "alpha alpha notes.")
}

func TestChunkExtractor_Extract_IsLazy(t *testing.T) {
	corpus := &countingCorpus{mockCorpus: newMockCorpus(map[string]string{"a.txt": "alpha"})}
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 200, Overlap: 20})
	doc := scanOne(t, corpus.mockCorpus)

	seq := e.Extract(context.Background(), doc)
	assert.Equal(t, 0, corpus.reads, "nothing is read before ranging")

	for range seq {
	}
	for range seq {
	}
	assert.Equal(t, 2, corpus.reads, "each range re-reads the document")
}

func TestChunkExtractor_Extract_Restartable(t *testing.T) {
	text := strings.Repeat("alpha beta gamma. ", 40)
	corpus := newMockCorpus(map[string]string{"long.txt": text})
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 100, Overlap: 10})
	doc := scanOne(t, corpus)

	collect := func() []domain.Chunk {
		var out []domain.Chunk
		for c, err := range e.Extract(context.Background(), doc) {
			require.NoError(t, err)
			out = append(out, c)
		}
		return out
	}

	first, second := collect(), collect()
	require.Greater(t, len(first), 1)
	assert.Equal(t, first, second)
	for i, c := range first {
		assert.Equal(t, i, c.Position)
	}
}

func TestChunkExtractor_Extract_StopsEarly(t *testing.T) {
	corpus := newMockCorpus(map[string]string{"long.txt": strings.Repeat("alpha beta gamma. ", 40)})
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 100, Overlap: 10})
	doc := scanOne(t, corpus)

	n := 0
	for range e.Extract(context.Background(), doc) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestChunkExtractor_Extract_YieldsErrorOnce(t *testing.T) {
	corpus := newMockCorpus(map[string]string{"legacy.doc": "binary"})
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 100, Overlap: 10})
	doc := scanOne(t, corpus)

	var errs []error
	for _, err := range e.Extract(context.Background(), doc) {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrUnsupportedType)
	assert.Contains(t, errs[0].Error(), "legacy.doc")
}

func TestChunkExtractor_ParseFailure(t *testing.T) {
	corpus := newMockCorpus(map[string]string{"bad.txt": "a\x00b"})
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 100, Overlap: 10})

	_, err := e.ExtractAll(context.Background(), scanOne(t, corpus))

	assert.ErrorIs(t, err, domain.ErrParseFailed)
}

func TestChunkExtractor_EmptyDocument(t *testing.T) {
	corpus := newMockCorpus(map[string]string{"empty.txt": "  \n\n "})
	e := newTestExtractor(corpus, domain.ChunkingSettings{Size: 100, Overlap: 10})

	chunks, err := e.ExtractAll(context.Background(), scanOne(t, corpus))

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMergeNormalised(t *testing.T) {
	scanned := domain.Document{
		ID:       "a.md",
		Path:     "/corpus/a.md",
		Title:    "a.md",
		MIMEType: "text/markdown",
		Metadata: map[string]any{"size": 10},
	}
	parsed := domain.Document{
		ID:       "random",
		Path:     "elsewhere",
		Title:    "Front Matter Title",
		Content:  "body",
		Metadata: map[string]any{"author": "someone", "size": 99},
	}

	out := mergeNormalised(scanned, parsed)

	assert.Equal(t, "a.md", out.ID)
	assert.Equal(t, "/corpus/a.md", out.Path)
	assert.Equal(t, "Front Matter Title", out.Title)
	assert.Equal(t, "body", out.Content)
	assert.Equal(t, "someone", out.Metadata["author"])
	assert.Equal(t, 10, out.Metadata["size"])
}

// countingCorpus counts reads.
type countingCorpus struct {
	*mockCorpus
	reads int
}

func (c *countingCorpus) Read(ctx context.Context, doc domain.Document) (*domain.RawDocument, error) {
	c.reads++
	return c.mockCorpus.Read(ctx, doc)
}
