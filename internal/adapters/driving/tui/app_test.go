package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

func newTestApp(t *testing.T, indexing *MockIndexingService) *App {
	t.Helper()
	ports := &Ports{Answer: &MockAnswerService{}}
	if indexing != nil {
		ports.Indexing = indexing
	}
	app, err := NewApp(ports, ask.Options{})
	require.NoError(t, err)
	return app
}

func TestNewApp_Success(t *testing.T) {
	app := newTestApp(t, nil)

	assert.Equal(t, messages.ViewAsk, app.CurrentView())
	assert.False(t, app.Ready())
	assert.NotNil(t, app.AskView())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{}, ask.Options{})

	require.Error(t, err)
	assert.Nil(t, app)
	assert.ErrorIs(t, err, ErrMissingAnswerService)
}

func TestNewApp_NilPorts(t *testing.T) {
	_, err := NewApp(nil, ask.Options{})

	assert.ErrorIs(t, err, ErrInvalidPorts)
}

func TestApp_Init(t *testing.T) {
	app := newTestApp(t, nil)

	assert.NotNil(t, app.Init())
}

func TestApp_View_NotReady(t *testing.T) {
	app := newTestApp(t, nil)

	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_WindowSize(t *testing.T) {
	app := newTestApp(t, nil)

	_, cmd := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
	assert.NotEqual(t, "Initialising...", app.View())
}

func TestApp_CtrlCQuits(t *testing.T) {
	app := newTestApp(t, nil)
	app.SetDimensions(80, 24)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_QuitMessage(t *testing.T) {
	app := newTestApp(t, nil)

	_, cmd := app.Update(messages.Quit{})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_HelpView(t *testing.T) {
	app := newTestApp(t, nil)
	app.SetDimensions(80, 40)

	app.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())
	assert.Contains(t, app.View(), "rebuild")
	assert.Contains(t, app.View(), "exit, quit")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewAsk, app.CurrentView())
}

func TestApp_ViewChanged(t *testing.T) {
	app := newTestApp(t, nil)

	app.Update(messages.ViewChanged{View: messages.ViewHelp})

	assert.Equal(t, messages.ViewHelp, app.CurrentView())
}

func TestApp_ErrorOccurred(t *testing.T) {
	app := newTestApp(t, nil)
	app.SetDimensions(80, 24)
	wantErr := errors.New("boom")

	app.Update(messages.ErrorOccurred{Err: wantErr})

	assert.Equal(t, wantErr, app.Err())
}

func TestApp_WatchCorpus_WithoutIndexing(t *testing.T) {
	app := newTestApp(t, nil)

	require.NoError(t, app.WatchCorpus())
	assert.Nil(t, app.waitForChange())
}

func TestApp_WatchCorpus_Error(t *testing.T) {
	app := newTestApp(t, &MockIndexingService{WatchErr: errors.New("no watcher")})

	err := app.WatchCorpus()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching corpus")
}

func TestApp_WatchCorpus_DeliversChanges(t *testing.T) {
	indexing := &MockIndexingService{Changes: make(chan domain.CorpusChange, 1)}
	app := newTestApp(t, indexing)
	app.WithContext(context.Background())
	app.SetDimensions(80, 24)
	require.NoError(t, app.WatchCorpus())

	indexing.Changes <- domain.CorpusChange{Path: "guide.md"}
	msg := app.waitForChange()()

	changed, ok := msg.(messages.CorpusChanged)
	require.True(t, ok)
	assert.Equal(t, "guide.md", changed.Change.Path)

	_, cmd := app.Update(changed)
	assert.NotNil(t, cmd)
	assert.Equal(t, ask.CorpusChangedNotice, app.AskView().Notice())
}

func TestApp_WatchCorpus_Stopped(t *testing.T) {
	indexing := &MockIndexingService{Changes: make(chan domain.CorpusChange)}
	app := newTestApp(t, indexing)
	require.NoError(t, app.WatchCorpus())

	close(indexing.Changes)
	msg := app.waitForChange()()
	assert.IsType(t, messages.WatchStopped{}, msg)

	app.Update(msg)
	assert.Nil(t, app.waitForChange())
}
