package services

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
	"github.com/custodia-labs/docusearch/internal/normalisers"
	"github.com/custodia-labs/docusearch/internal/postprocessors"
)

// testVocabulary fixes the embedding axes of mockEmbedder.
var testVocabulary = []string{"alpha", "beta", "gamma", "delta", "epsilon"}

// mockEmbedder embeds text as word counts over testVocabulary plus a
// constant component, so related texts score higher and no vector is zero.
type mockEmbedder struct {
	mu       sync.Mutex
	model    string
	dims     int
	err      error
	failOn   int
	calls    int
	embedded int
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{model: "mock-embed", dims: len(testVocabulary) + 1}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil && (m.failOn == 0 || m.calls == m.failOn) {
		return nil, m.err
	}
	m.embedded += len(texts)

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,;:!?#|")
			for axis, term := range testVocabulary {
				if word == term && axis < m.dims-1 {
					v[axis]++
				}
			}
		}
		v[m.dims-1] = 0.1
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) ModelName() string { return m.model }
func (m *mockEmbedder) Ping(context.Context) error { return m.err }
func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockLLM records prompts and returns a canned response.
type mockLLM struct {
	response string
	err      error
	prompts  []string
	opts     []driven.GenerateOptions
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return m.err }
func (m *mockLLM) Close() error { return nil }

// mockCorpus serves files from a map keyed by path.
type mockCorpus struct {
	files   map[string]string
	ignored int
	missing bool
	scans   int
}

func newMockCorpus(files map[string]string) *mockCorpus {
	return &mockCorpus{files: files}
}

func (m *mockCorpus) Scan(_ context.Context, root string, extensions []string) (*domain.CorpusScan, error) {
	m.scans++
	if m.missing {
		return nil, domain.ErrCorpusNotFound
	}

	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	scan := &domain.CorpusScan{Ignored: m.ignored}
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		if !containsString(extensions, ext) {
			scan.Ignored++
			continue
		}
		scan.Documents = append(scan.Documents, domain.Document{
			ID:       p,
			Path:     filepath.Join(root, p),
			URI:      "file://" + filepath.Join(root, p),
			MIMEType: mimeForExt(ext),
		})
	}
	return scan, nil
}

func (m *mockCorpus) Read(_ context.Context, doc domain.Document) (*domain.RawDocument, error) {
	return &domain.RawDocument{
		URI:      doc.Path,
		MIMEType: doc.MIMEType,
		Content:  []byte(m.files[doc.ID]),
	}, nil
}

func (m *mockCorpus) Watch(ctx context.Context, _ string) (<-chan domain.CorpusChange, error) {
	ch := make(chan domain.CorpusChange)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func mimeForExt(ext string) string {
	switch ext {
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".doc":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// mockMetrics counts observations.
type mockMetrics struct {
	builds     int
	buildErrs  int
	embeddings int
	answers    []domain.AnswerStatus
}

func (m *mockMetrics) ObserveBuild(_ *domain.BuildResult, err error) {
	m.builds++
	if err != nil {
		m.buildErrs++
	}
}

func (m *mockMetrics) ObserveEmbedding(_ int, _ time.Duration, _ error) {
	m.embeddings++
}

func (m *mockMetrics) ObserveAnswer(status domain.AnswerStatus, _ int, _ time.Duration) {
	m.answers = append(m.answers, status)
}

// mockPromptStore serves a fixed template.
type mockPromptStore struct {
	template string
	err      error
}

func (m *mockPromptStore) Load(string) (string, error) { return m.template, m.err }
func (m *mockPromptStore) Reload() {}

// mockRetriever returns a fixed result.
type mockRetriever struct {
	result *domain.RetrievalResult
	err    error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, _ domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	return m.result, m.err
}

// failingVectorStore wraps a store and fails writer calls on demand.
type failingVectorStore struct {
	driven.VectorStore
	upsertErr error
	commitErr error
}

func (f *failingVectorStore) BeginCollection(ctx context.Context, name string) (driven.CollectionWriter, error) {
	w, err := f.VectorStore.BeginCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingWriter{CollectionWriter: w, store: f}, nil
}

type failingWriter struct {
	driven.CollectionWriter
	store *failingVectorStore
}

func (w *failingWriter) Upsert(ctx context.Context, records []domain.EmbeddingRecord) error {
	if w.store.upsertErr != nil {
		return w.store.upsertErr
	}
	return w.CollectionWriter.Upsert(ctx, records)
}

func (w *failingWriter) Commit(ctx context.Context, info domain.CollectionInfo) (*domain.CollectionInfo, error) {
	if w.store.commitErr != nil {
		return nil, w.store.commitErr
	}
	return w.CollectionWriter.Commit(ctx, info)
}

// newTestExtractor builds a chunk extractor with the real parsers and chunker.
func newTestExtractor(corpus driven.Corpus, chunking domain.ChunkingSettings) *ChunkExtractor {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(domain.PipelineConfigFor(chunking))
	if err != nil {
		panic(err)
	}
	return NewChunkExtractor(corpus, normalisers.NewDefaultRegistry(), pipeline)
}

// testSettings returns default settings with small chunks.
func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.Chunking = domain.ChunkingSettings{Size: 200, Overlap: 20}
	s.Generation.ContextBudget = 1000
	s.Corpus.Path = "/corpus"
	return s
}

var _ driven.ConfigStore = (*mockConfigStore)(nil)

// mockConfigStore keeps settings in a map. Set fails for failKey.
type mockConfigStore struct {
	values  map[string]any
	failKey string
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	s, _ := m.values[key].(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	switch v := m.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (m *mockConfigStore) GetBool(key string) bool {
	b, _ := m.values[key].(bool)
	return b
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	s, _ := m.values[key].([]string)
	return s
}

func (m *mockConfigStore) Set(key string, value any) error {
	if key == m.failKey {
		return errors.New("write failed")
	}
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }

func (m *mockConfigStore) Load() error { return nil }

func (m *mockConfigStore) Path() string { return "" }
