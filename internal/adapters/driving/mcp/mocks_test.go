package mcp

import (
	"context"

	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer   *domain.Answer
	err      error
	question string
	opts     domain.AnswerOptions
}

func (m *mockAnswerService) Answer(_ context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.question = question
	m.opts = opts
	return m.answer, m.err
}

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	result *domain.RetrievalResult
	err    error
	opts   domain.RetrieveOptions
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, opts domain.RetrieveOptions) (*domain.RetrievalResult, error) {
	m.opts = opts
	return m.result, m.err
}

// mockIndexingService is a mock implementation of driving.IndexingService.
type mockIndexingService struct {
	info *domain.CollectionInfo
	err  error
}

func (m *mockIndexingService) Build(_ context.Context, _ domain.BuildRequest) (*domain.BuildResult, error) {
	return nil, m.err
}

func (m *mockIndexingService) Status(_ context.Context) (*domain.CollectionInfo, error) {
	return m.info, m.err
}

func (m *mockIndexingService) Watch(ctx context.Context) (<-chan domain.CorpusChange, error) {
	ch := make(chan domain.CorpusChange)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func fullPorts() *Ports {
	return &Ports{
		Answer:    &mockAnswerService{},
		Retriever: &mockRetriever{},
		Indexing:  &mockIndexingService{},
	}
}

func chunkFrom(file, content string, page int) domain.Chunk {
	return domain.Chunk{
		ID:         file + "#0",
		DocumentID: file,
		Content:    content,
		Metadata: map[string]any{
			domain.MetaSourceFile: file,
			domain.MetaSourcePath: "/corpus/" + file,
			domain.MetaPage:       page,
			domain.MetaHeading:    "Intro",
		},
	}
}
