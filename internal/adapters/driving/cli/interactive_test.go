package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

func TestInteractiveCmd_Alias(t *testing.T) {
	assert.Contains(t, interactiveCmd.Aliases, "chat")
	assert.NotNil(t, interactiveCmd.Flags().Lookup("plain"))
	assert.NotNil(t, interactiveCmd.Flags().Lookup("show-sources"))
}

func TestInteractive_NotTerminalForBuffers(t *testing.T) {
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetOut(new(strings.Builder))
	defer rootCmd.SetIn(nil)

	assert.False(t, isTerminal(interactiveCmd))
}

func TestInteractive_AnswersUntilExit(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("When do I get a laptop?\n\nexit\nnever asked\n"))

	out, err := executeCommand("interactive")

	require.NoError(t, err)
	assert.Equal(t, []string{"When do I get a laptop?"}, ts.answer.Questions)
	assert.Contains(t, out, "Answer: Laptops are issued on day one [1].")
	assert.Contains(t, out, "Exiting...")
}

func TestInteractive_QuitIsCaseInsensitive(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("QUIT\n"))

	_, err := executeCommand("chat")

	require.NoError(t, err)
	assert.Empty(t, ts.answer.Questions)
}

func TestInteractive_EndOfInput(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("one question"))

	_, err := executeCommand("interactive")

	require.NoError(t, err)
	assert.Equal(t, []string{"one question"}, ts.answer.Questions)
}

func TestInteractive_Rebuild(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("rebuild\nexit\n"))

	out, err := executeCommand("interactive")

	require.NoError(t, err)
	reqs := ts.indexing.BuildRequests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Rebuild)
	assert.Contains(t, out, "Rebuilding index...")
	assert.Contains(t, out, "Indexed 3 chunks from 1 documents")
	assert.Empty(t, ts.answer.Questions)
}

func TestInteractive_RebuildFailureKeepsSession(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.indexing.BuildErr = errBackend
	rootCmd.SetIn(strings.NewReader("rebuild\nstill here?\nexit\n"))

	out, err := executeCommand("interactive")

	require.NoError(t, err)
	assert.Contains(t, out, "Rebuild failed: backend down")
	assert.Equal(t, []string{"still here?"}, ts.answer.Questions)
}

func TestInteractive_QuestionErrorKeepsSession(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	calls := 0
	ts.answer.AnswerFunc = func(q string, _ domain.AnswerOptions) (*domain.Answer, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("timeout")
		}
		return groundedAnswer(q), nil
	}
	rootCmd.SetIn(strings.NewReader("first\nsecond\nexit\n"))

	out, err := executeCommand("interactive")

	require.NoError(t, err)
	assert.Contains(t, out, "Error processing query: timeout")
	assert.Equal(t, 2, calls)
}

func TestInteractive_Help(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("help\nexit\n"))

	out, err := executeCommand("interactive")

	require.NoError(t, err)
	assert.Contains(t, out, "Commands: exit, quit, rebuild, help.")
}

func TestInteractive_BuildsMissingIndex(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.indexing.Info = nil
	rootCmd.SetIn(strings.NewReader("exit\n"))

	out, err := executeCommand("interactive")

	require.NoError(t, err)
	assert.Contains(t, out, "No existing index found. Building new index...")
	reqs := ts.indexing.BuildRequests()
	require.Len(t, reqs, 1)
	assert.False(t, reqs[0].Rebuild)
}

func TestInteractive_CorpusChangeNotice(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.indexing.Changes = make(chan domain.CorpusChange, 1)
	ts.indexing.Changes <- domain.CorpusChange{Type: domain.ChangeUpdated, Path: "onboarding.md"}
	close(ts.indexing.Changes)

	w := &lockedWriter{w: new(strings.Builder)}
	indexingService = ts.indexing
	watchCorpus(t.Context(), w)

	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return strings.Contains(w.w.(*strings.Builder).String(), ask.CorpusChangedNotice)
	}, time.Second, 10*time.Millisecond)
}

func TestRelayChanges_OneNoticePerPrompt(t *testing.T) {
	burst := func() <-chan domain.CorpusChange {
		ch := make(chan domain.CorpusChange, 4)
		ch <- domain.CorpusChange{Type: domain.ChangeCreated, Path: "notes.md"}
		ch <- domain.CorpusChange{Type: domain.ChangeUpdated, Path: "notes.md"}
		ch <- domain.CorpusChange{Type: domain.ChangeUpdated, Path: "notes.md"}
		ch <- domain.CorpusChange{Type: domain.ChangeUpdated, Path: "other.md"}
		close(ch)
		return ch
	}
	out := new(strings.Builder)
	notice := &changeNotice{out: out}

	relayChanges(burst(), notice)
	assert.Equal(t, 1, strings.Count(out.String(), ask.CorpusChangedNotice))

	relayChanges(burst(), notice)
	assert.Equal(t, 1, strings.Count(out.String(), ask.CorpusChangedNotice), "no repeat before the next prompt")

	notice.rearm()
	relayChanges(burst(), notice)
	assert.Equal(t, 2, strings.Count(out.String(), ask.CorpusChangedNotice))
}

func TestChangeNotice_NilRearm(t *testing.T) {
	var notice *changeNotice
	assert.NotPanics(t, notice.rearm)
}

func TestInteractive_WatchErrorIsNotFatal(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.indexing.WatchErr = errors.New("no inotify")
	rootCmd.SetIn(strings.NewReader("exit\n"))

	_, err := executeCommand("interactive")

	assert.NoError(t, err)
}
