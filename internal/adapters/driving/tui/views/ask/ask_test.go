package ask

import (
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// MockAnswerService implements driving.AnswerService for testing.
type MockAnswerService struct {
	AnswerFunc func(ctx context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error)
}

func (m *MockAnswerService) Answer(
	ctx context.Context, question string, opts domain.AnswerOptions,
) (*domain.Answer, error) {
	if m.AnswerFunc != nil {
		return m.AnswerFunc(ctx, question, opts)
	}
	return &domain.Answer{Question: question, Status: domain.AnswerNoContext, Text: domain.NoContextText}, nil
}

// MockIndexingService implements driving.IndexingService for testing.
type MockIndexingService struct {
	BuildFunc func(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error)
	Info      *domain.CollectionInfo
}

func (m *MockIndexingService) Build(ctx context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, req)
	}
	return &domain.BuildResult{}, nil
}

func (m *MockIndexingService) Status(_ context.Context) (*domain.CollectionInfo, error) {
	return m.Info, nil
}

func (m *MockIndexingService) Watch(_ context.Context) (<-chan domain.CorpusChange, error) {
	return make(chan domain.CorpusChange), nil
}

func groundedAnswer() *domain.Answer {
	return &domain.Answer{
		Question:   "what is alpha?",
		Status:     domain.AnswerGrounded,
		Text:       "Alpha is the first section [1].",
		Collection: domain.CollectionReady,
		Sources: []domain.ScoredChunk{
			{
				Chunk: domain.Chunk{
					DocumentID: "guide.md",
					Content:    "alpha alpha notes",
					Metadata:   map[string]any{domain.MetaSourceFile: "guide.md"},
				},
				Score: 0.9,
			},
		},
	}
}

func newReadyView(answer *MockAnswerService, indexing *MockIndexingService) *View {
	var view *View
	if indexing == nil {
		view = NewView(nil, nil, answer, nil, Options{})
	} else {
		view = NewView(nil, nil, answer, indexing, Options{})
	}
	view.SetDimensions(120, 40)
	return view
}

func typeText(v *View, text string) *View {
	for _, r := range text {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return v
}

func TestNewView(t *testing.T) {
	view := NewView(nil, nil, &MockAnswerService{}, nil, Options{ShowSources: true})

	require.NotNil(t, view)
	assert.False(t, view.Ready())
	assert.True(t, view.ShowSources())
	assert.True(t, view.Input().Focused())
	assert.NotNil(t, view.styles)
	assert.NotNil(t, view.keymap)
	assert.Equal(t, "Initialising...", view.View())
}

func TestView_WithContext(t *testing.T) {
	view := NewView(nil, nil, nil, nil, Options{})
	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")

	assert.Equal(t, view, view.WithContext(ctx))
	assert.Equal(t, ctx, view.ctx)
}

func TestView_Init_LoadsCollection(t *testing.T) {
	indexing := &MockIndexingService{Info: &domain.CollectionInfo{ChunkCount: 7}}
	view := NewView(nil, nil, &MockAnswerService{}, indexing, Options{})

	assert.NotNil(t, view.Init())

	msg := view.loadCollection()()
	loaded, ok := msg.(messages.CollectionLoaded)
	require.True(t, ok)
	assert.Equal(t, 7, loaded.Info.ChunkCount)
}

func TestView_LoadCollection_WithoutIndexing(t *testing.T) {
	view := NewView(nil, nil, &MockAnswerService{}, nil, Options{})

	assert.Nil(t, view.loadCollection())
}

func TestView_Update_WindowSize(t *testing.T) {
	view := NewView(nil, nil, nil, nil, Options{})

	view, cmd := view.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.Nil(t, cmd)
	assert.True(t, view.Ready())
	assert.Equal(t, 100, view.viewport.Width)
}

func TestView_Submit_AsksQuestion(t *testing.T) {
	var gotQuestion string
	var gotOpts domain.AnswerOptions
	answer := &MockAnswerService{
		AnswerFunc: func(_ context.Context, q string, opts domain.AnswerOptions) (*domain.Answer, error) {
			gotQuestion = q
			gotOpts = opts
			return groundedAnswer(), nil
		},
	}
	view := NewView(nil, nil, answer, nil, Options{TopK: 3})
	view.SetDimensions(120, 40)
	view = typeText(view, "what is alpha?")

	view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.True(t, view.Busy())
	assert.Equal(t, status.StateThinking, view.StatusBar().State())
	assert.Equal(t, "", view.Input().Value())

	msg := view.performAnswer("what is alpha?")()
	assert.Equal(t, "what is alpha?", gotQuestion)
	assert.Equal(t, 3, gotOpts.TopK)

	view, _ = view.Update(msg)
	assert.False(t, view.Busy())
	require.NotNil(t, view.Answer())
	assert.Equal(t, domain.AnswerGrounded, view.Answer().Status)
	assert.Equal(t, status.StateAnswered, view.StatusBar().State())
	assert.Equal(t, 1, view.Sources().Count())
	assert.Contains(t, view.View(), "Alpha is the first section")
}

func TestView_Submit_EmptyInputDoesNothing(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)

	view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, view.Busy())
}

func TestView_Submit_Commands(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  tea.Msg
	}{
		{"exit", "exit", messages.Quit{}},
		{"quit is case insensitive", "QUIT", messages.Quit{}},
		{"help", "help", messages.ViewChanged{View: messages.ViewHelp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := newReadyView(&MockAnswerService{}, nil)
			view = typeText(view, tt.input)

			view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

			require.NotNil(t, cmd)
			assert.Equal(t, tt.want, cmd())
			assert.False(t, view.Busy())
		})
	}
}

func TestView_Rebuild(t *testing.T) {
	var gotReq domain.BuildRequest
	indexing := &MockIndexingService{
		BuildFunc: func(_ context.Context, req domain.BuildRequest) (*domain.BuildResult, error) {
			gotReq = req
			return &domain.BuildResult{
				ChunksWritten:    12,
				DocumentsIndexed: 3,
				DocumentsSkipped: 1,
				DocumentsIgnored: 2,
				Collection:       &domain.CollectionInfo{ChunkCount: 12},
			}, nil
		},
	}
	view := newReadyView(&MockAnswerService{}, indexing)
	view, _ = view.Update(messages.CorpusChanged{Change: domain.CorpusChange{Type: domain.ChangeUpdated, Path: "a.md"}})
	require.Equal(t, CorpusChangedNotice, view.Notice())
	view = typeText(view, "rebuild")

	view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, view.Busy())
	assert.Equal(t, status.StateIndexing, view.StatusBar().State())

	view, _ = view.Update(view.performRebuild()())

	assert.True(t, gotReq.Rebuild)
	assert.False(t, view.Busy())
	assert.Empty(t, view.Notice(), "rebuild clears the corpus notice")
	assert.Equal(t, "Indexed 12 chunks from 3 documents (1 skipped, 2 ignored)", view.StatusBar().Message())
	assert.Contains(t, view.View(), "12 chunks")
}

func TestView_Rebuild_ShortcutKey(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, &MockIndexingService{})

	view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyCtrlR})

	assert.NotNil(t, cmd)
	assert.True(t, view.Busy())
}

func TestView_Rebuild_Unavailable(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)
	view = typeText(view, "rebuild")

	view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.ErrorIs(t, view.Err(), ErrNoIndexingService)
	assert.Equal(t, status.StateError, view.StatusBar().State())
}

func TestView_Rebuild_Failure(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, &MockIndexingService{})
	view.busy = true

	view, _ = view.Update(messages.RebuildCompleted{Err: domain.ErrCorpusNotFound})

	assert.False(t, view.Busy())
	assert.ErrorIs(t, view.Err(), domain.ErrCorpusNotFound)
}

func TestView_AnswerError(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)
	view.busy = true

	view, _ = view.Update(messages.AnswerCompleted{Err: errors.New("store unavailable")})

	assert.False(t, view.Busy())
	assert.Nil(t, view.Answer())
	assert.Equal(t, status.StateError, view.StatusBar().State())
	assert.Contains(t, view.View(), "store unavailable")
}

func TestView_PerformAnswer_NoService(t *testing.T) {
	view := NewView(nil, nil, nil, nil, Options{})

	msg := view.performAnswer("q")()

	errMsg, ok := msg.(messages.ErrorOccurred)
	require.True(t, ok)
	assert.ErrorIs(t, errMsg.Err, ErrNoAnswerService)
}

func TestView_KeysIgnoredWhileBusy(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)
	view.busy = true

	view = typeText(view, "abc")

	assert.Equal(t, "", view.Input().Value())
}

func TestView_ToggleSources(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)
	view, _ = view.Update(messages.AnswerCompleted{Answer: groundedAnswer()})
	require.False(t, view.ShowSources())
	assert.NotContains(t, view.View(), "Sources (1)")

	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.True(t, view.ShowSources())
	assert.Contains(t, view.View(), "[1] guide.md (0.90)")
}

func TestView_GenerationFailedShowsError(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)

	view, _ = view.Update(messages.AnswerCompleted{Answer: &domain.Answer{
		Question:        "q",
		Status:          domain.AnswerGenerationFailed,
		Text:            domain.GenerationErrorText,
		GenerationError: "status 500",
	}})

	rendered := view.View()
	assert.Contains(t, rendered, "Generation failed")
	assert.Contains(t, rendered, "Generation error: status 500")
}

func TestView_EscClearsInput(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)
	view = typeText(view, "half typed")

	view, _ = view.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, "", view.Input().Value())
}

func TestView_CollectionLoaded(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)

	view, _ = view.Update(messages.CollectionLoaded{Info: &domain.CollectionInfo{Name: "docs"}})

	assert.Contains(t, view.View(), "empty index")
}

func TestView_SpinnerTickIgnoredWhenIdle(t *testing.T) {
	view := newReadyView(&MockAnswerService{}, nil)

	_, cmd := view.Update(spinner.TickMsg{})

	assert.Nil(t, cmd)
}

func TestBuildSummary(t *testing.T) {
	assert.Equal(t, "Index already exists with 5 chunks",
		BuildSummary(&domain.BuildResult{ShortCircuited: true, ChunksWritten: 5}))
	assert.Equal(t, "Indexed 0 chunks from 0 documents (0 skipped, 0 ignored)",
		BuildSummary(&domain.BuildResult{}))
}
