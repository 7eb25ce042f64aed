// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driving"
)

// Typed commands recognised in the input alongside questions.
const (
	commandExit    = "exit"
	commandQuit    = "quit"
	commandRebuild = "rebuild"
	commandHelp    = "help"
)

// CorpusChangedNotice is shown when the corpus changes under a running session.
const CorpusChangedNotice = "corpus changed; type 'rebuild' to re-index"

// Options configures the view.
type Options struct {
	// TopK is passed to every question. Zero means the configured default.
	TopK int

	// ShowSources opens the source list after each answer.
	ShowSources bool
}

// View asks questions and shows the answer with its sources.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	sources   *list.SourceList
	statusbar *status.Bar
	spinner   spinner.Model
	viewport  viewport.Model

	answerService   driving.AnswerService
	indexingService driving.IndexingService
	ctx             context.Context
	opts            Options

	answer      *domain.Answer
	notice      string
	busy        bool
	showSources bool
	err         error

	width  int
	height int
	ready  bool
}

// NewView creates a new ask view. indexingService is optional; without it
// rebuilds are refused.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	answerService driving.AnswerService,
	indexingService driving.IndexingService,
	opts Options,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	return &View{
		styles:          s,
		keymap:          km,
		input:           input.NewQuestionInput(s),
		sources:         list.NewSourceList(s),
		statusbar:       status.NewBar(s, km),
		spinner:         sp,
		viewport:        viewport.New(80, 10),
		answerService:   answerService,
		indexingService: indexingService,
		ctx:             context.Background(),
		opts:            opts,
		showSources:     opts.ShowSources,
		width:           80,
		height:          24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.input.Init(), v.loadCollection())
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerCompleted:
		v.handleAnswerCompleted(msg)
		return v, v.input.Focus()

	case messages.RebuildCompleted:
		v.handleRebuildCompleted(msg)
		return v, v.input.Focus()

	case messages.CollectionLoaded:
		if msg.Err == nil {
			v.statusbar.SetIndex(msg.Info)
		}
		return v, nil

	case messages.CorpusChanged:
		v.notice = CorpusChangedNotice
		return v, nil

	case messages.ErrorOccurred:
		v.busy = false
		v.setError(msg.Err)
		return v, nil

	case spinner.TickMsg:
		if !v.busy {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	// Ignore input while a request is running
	if v.busy {
		return v, nil
	}

	key := msg.String()
	switch {
	case keymap.Matches(key, v.keymap.Ask):
		return v.submit(v.input.Value())

	case keymap.Matches(key, v.keymap.Back):
		v.input.SetValue("")
		return v, nil

	case keymap.Matches(key, v.keymap.Rebuild):
		return v.submit(commandRebuild)

	case keymap.Matches(key, v.keymap.ToggleSources):
		v.showSources = !v.showSources
		v.layout()
		return v, nil

	case keymap.Matches(key, v.keymap.Up), keymap.Matches(key, v.keymap.Down):
		v.sources, _ = v.sources.Update(msg)
		return v, nil

	case keymap.Matches(key, v.keymap.ScrollUp), keymap.Matches(key, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit dispatches a typed line: a session command or a question.
func (v *View) submit(line string) (*View, tea.Cmd) {
	switch strings.ToLower(line) {
	case "":
		return v, nil
	case commandExit, commandQuit:
		return v, func() tea.Msg { return messages.Quit{} }
	case commandHelp:
		v.input.SetValue("")
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewHelp} }
	case commandRebuild:
		v.input.SetValue("")
		if v.indexingService == nil {
			v.setError(ErrNoIndexingService)
			return v, nil
		}
		v.startBusy(status.StateIndexing)
		return v, tea.Batch(v.spinner.Tick, v.performRebuild())
	}

	v.input.SetValue("")
	v.startBusy(status.StateThinking)
	return v, tea.Batch(v.spinner.Tick, v.performAnswer(line))
}

func (v *View) startBusy(state status.State) {
	v.busy = true
	v.err = nil
	v.input.Blur()
	v.statusbar.Clear()
	v.statusbar.SetState(state)
}

// performAnswer answers a question in the background.
func (v *View) performAnswer(question string) tea.Cmd {
	return func() tea.Msg {
		if v.answerService == nil {
			return messages.ErrorOccurred{Err: ErrNoAnswerService}
		}
		answer, err := v.answerService.Answer(v.ctx, question, domain.AnswerOptions{TopK: v.opts.TopK})
		return messages.AnswerCompleted{Answer: answer, Err: err}
	}
}

// performRebuild re-indexes the corpus in the background.
func (v *View) performRebuild() tea.Cmd {
	return func() tea.Msg {
		result, err := v.indexingService.Build(v.ctx, domain.BuildRequest{Rebuild: true})
		return messages.RebuildCompleted{Result: result, Err: err}
	}
}

// loadCollection fetches the collection summary for the status bar.
func (v *View) loadCollection() tea.Cmd {
	if v.indexingService == nil {
		return nil
	}
	return func() tea.Msg {
		info, err := v.indexingService.Status(v.ctx)
		return messages.CollectionLoaded{Info: info, Err: err}
	}
}

func (v *View) handleAnswerCompleted(msg messages.AnswerCompleted) {
	v.busy = false
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.answer = msg.Answer
	v.sources.SetSources(msg.Answer.Sources)
	v.statusbar.SetState(status.StateAnswered)
	v.statusbar.SetAnswerStatus(msg.Answer.Status)
	v.viewport.SetContent(v.renderAnswer())
	v.viewport.GotoTop()
}

func (v *View) handleRebuildCompleted(msg messages.RebuildCompleted) {
	v.busy = false
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.notice = ""
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetIndex(msg.Result.Collection)
	v.statusbar.SetMessage(BuildSummary(msg.Result))
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// BuildSummary describes a finished build in one line.
func BuildSummary(r *domain.BuildResult) string {
	if r.ShortCircuited {
		return fmt.Sprintf("Index already exists with %d chunks", r.ChunksWritten)
	}
	return fmt.Sprintf("Indexed %d chunks from %d documents (%d skipped, %d ignored)",
		r.ChunksWritten, r.DocumentsIndexed, r.DocumentsSkipped, r.DocumentsIgnored)
}

// renderAnswer formats the current answer for the viewport.
func (v *View) renderAnswer() string {
	if v.answer == nil {
		return v.styles.Muted.Render("Ask a question to get started. Type 'help' for commands.")
	}

	a := v.answer
	lines := []string{
		v.styles.Subtitle.Render("Q: ") + v.styles.Normal.Render(a.Question),
		v.styles.StatusLabel(a.Status).Render("[" + a.Status.Description() + "]"),
		"",
		v.styles.Answer.Width(max(v.width-4, 20)).Render(a.Text),
	}
	if a.GenerationError != "" {
		lines = append(lines, "", v.styles.Error.Render("Generation error: "+a.GenerationError))
	}
	return strings.Join(lines, "\n")
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)
	sections = append(sections, v.styles.Title.Render("docusearch"), "")

	if v.notice != "" {
		sections = append(sections, v.styles.Notice.Render(v.notice), "")
	}

	sections = append(sections, v.viewport.View(), "")

	if v.showSources && v.answer != nil {
		sections = append(sections, v.sources.View(), "")
	}

	if v.busy {
		sections = append(sections, v.spinner.View()+" "+v.styles.Muted.Render(string(v.statusbar.State())+"..."))
	} else {
		sections = append(sections, v.input.View())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.layout()
}

// layout splits the height between the answer and source panes.
func (v *View) layout() {
	// Header, input, status bar and spacing
	const chrome = 9
	body := max(v.height-chrome, 4)

	answerHeight := body
	if v.showSources {
		answerHeight = max(body/2, 2)
		v.sources.SetDimensions(v.width, body-answerHeight)
	}

	v.input.SetWidth(v.width)
	v.statusbar.SetWidth(v.width)
	v.viewport.Width = v.width
	v.viewport.Height = answerHeight
	v.viewport.SetContent(v.renderAnswer())
}

// Answer returns the last answer, if any.
func (v *View) Answer() *domain.Answer {
	return v.answer
}

// Notice returns the current notice line.
func (v *View) Notice() string {
	return v.notice
}

// Busy returns whether a request is running.
func (v *View) Busy() bool {
	return v.busy
}

// ShowSources returns whether the source list is visible.
func (v *View) ShowSources() bool {
	return v.showSources
}

// Sources returns the source list component.
func (v *View) Sources() *list.SourceList {
	return v.sources
}

// StatusBar returns the status bar component.
func (v *View) StatusBar() *status.Bar {
	return v.statusbar
}

// Input returns the question input component.
func (v *View) Input() *input.QuestionInput {
	return v.input
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
