package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
)

// MockIndexingService implements driving.IndexingService for testing.
type MockIndexingService struct {
	mu       sync.Mutex
	Result   *domain.BuildResult
	BuildErr error
	Info     *domain.CollectionInfo
	Changes  chan domain.CorpusChange
	WatchErr error
	Requests []domain.BuildRequest
}

func (m *MockIndexingService) Build(_ context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.BuildErr != nil {
		return nil, m.BuildErr
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &domain.BuildResult{ChunksWritten: 3, DocumentsIndexed: 1}, nil
}

func (m *MockIndexingService) Status(_ context.Context) (*domain.CollectionInfo, error) {
	return m.Info, nil
}

func (m *MockIndexingService) Watch(ctx context.Context) (<-chan domain.CorpusChange, error) {
	if m.WatchErr != nil {
		return nil, m.WatchErr
	}
	if m.Changes != nil {
		return m.Changes, nil
	}
	ch := make(chan domain.CorpusChange)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *MockIndexingService) BuildRequests() []domain.BuildRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BuildRequest(nil), m.Requests...)
}

// MockRetriever implements driving.Retriever for testing.
type MockRetriever struct{}

func (m *MockRetriever) Retrieve(
	_ context.Context, query string, _ domain.RetrieveOptions,
) (*domain.RetrievalResult, error) {
	return &domain.RetrievalResult{Query: query, State: domain.CollectionReady}, nil
}

// MockAnswerService implements driving.AnswerService for testing.
type MockAnswerService struct {
	mu         sync.Mutex
	AnswerFunc func(question string, opts domain.AnswerOptions) (*domain.Answer, error)
	Questions  []string
}

func (m *MockAnswerService) Answer(
	_ context.Context, question string, opts domain.AnswerOptions,
) (*domain.Answer, error) {
	m.mu.Lock()
	m.Questions = append(m.Questions, question)
	m.mu.Unlock()
	if m.AnswerFunc != nil {
		return m.AnswerFunc(question, opts)
	}
	return groundedAnswer(question), nil
}

// MockSettingsService implements driving.SettingsService for testing.
type MockSettingsService struct {
	Values      map[string]string
	SetErr      error
	ValidateErr error
}

func (m *MockSettingsService) Get() (*domain.Settings, error) {
	s := domain.DefaultSettings()
	return &s, nil
}

func (m *MockSettingsService) Set(key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Values == nil {
		m.Values = make(map[string]string)
	}
	m.Values[key] = value
	return nil
}

func (m *MockSettingsService) Keys() []string {
	return []string{"corpus.path", "chunking.size", "llm.api_key"}
}

func (m *MockSettingsService) Entries() ([]domain.SettingEntry, error) {
	return []domain.SettingEntry{
		{Key: "corpus.path", Value: "documents", Source: domain.SettingSourceDefault},
		{Key: "chunking.size", Value: "800", Source: domain.SettingSourceConfig},
		{Key: "llm.api_key", Value: "", Source: domain.SettingSourceDefault},
	}, nil
}

func (m *MockSettingsService) Validate() error { return m.ValidateErr }

func (m *MockSettingsService) GetDefaults() domain.Settings { return domain.DefaultSettings() }

func (m *MockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *MockSettingsService) ValidateLLMConfig() error { return nil }

var (
	_ driving.IndexingService = (*MockIndexingService)(nil)
	_ driving.Retriever       = (*MockRetriever)(nil)
	_ driving.AnswerService   = (*MockAnswerService)(nil)
	_ driving.SettingsService = (*MockSettingsService)(nil)
)

var errBackend = errors.New("backend down")

func groundedAnswer(question string) *domain.Answer {
	return &domain.Answer{
		Question:   question,
		Status:     domain.AnswerGrounded,
		Text:       "Laptops are issued on day one [1].",
		Collection: domain.CollectionReady,
		Model:      "llama3.2",
		Sources: []domain.ScoredChunk{{
			Chunk: domain.Chunk{
				ID:         "c1",
				DocumentID: "onboarding.md",
				Content:    "Every new starter is issued a laptop on their first day.",
				Metadata: map[string]any{
					domain.MetaSourceFile: "onboarding.md",
					domain.MetaSourcePath: "documents/onboarding.md",
				},
			},
			Score: 0.87,
		}},
	}
}

func readyInfo() *domain.CollectionInfo {
	return &domain.CollectionInfo{
		Name:           domain.DefaultCollection,
		EmbeddingModel: "nomic-embed-text",
		Dimensions:     768,
		ChunkSize:      512,
		ChunkOverlap:   128,
		ChunkCount:     42,
		DocumentCount:  5,
		BuiltAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	indexing *MockIndexingService
	answer   *MockAnswerService
	settings *MockSettingsService
}

// setupTestServices installs mock services and returns a cleanup function
// that restores the previous services and resets command flags.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		indexing: &MockIndexingService{Info: readyInfo()},
		answer:   &MockAnswerService{},
		settings: &MockSettingsService{},
	}

	prev := Services{
		Indexing:  indexingService,
		Retriever: retrieverService,
		Answer:    answerService,
		Settings:  settingsService,
	}
	SetServices(&Services{
		Indexing:  ts.indexing,
		Retriever: &MockRetriever{},
		Answer:    ts.answer,
		Settings:  ts.settings,
	})

	return ts, func() {
		SetServices(&prev)
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}
}

// resetFlags restores flag variables that persist between executions.
func resetFlags() {
	buildRebuild = false
	queryShowSources = false
	queryTopK = 0
	queryFormat = formatText
	batchShowSources = false
	batchFormat = formatText
	interactivePlain = false
	interactiveShowSources = false
	interactiveTopK = 0
	verbose = false
	logFormat = "text"
}
