package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	// askView is the question and answer view.
	askView *ask.View

	// changes delivers corpus changes while the watch is running.
	changes <-chan domain.CorpusChange

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports, opts ask.Options) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		askView:     ask.NewView(s, km, ports.Answer, ports.Indexing, opts),
		currentView: messages.ViewAsk,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.askView.WithContext(ctx)
	return a
}

// WatchCorpus starts watching the corpus for changes. The watch ends when
// the app context is cancelled. Without an indexing port this is a no-op.
func (a *App) WatchCorpus() error {
	if a.ports.Indexing == nil {
		return nil
	}
	changes, err := a.ports.Indexing.Watch(a.ctx)
	if err != nil {
		return fmt.Errorf("watching corpus: %w", err)
	}
	a.changes = changes
	return nil
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("docusearch"),
		a.askView.Init(),
		a.waitForChange(),
	)
}

// waitForChange blocks on the next corpus change.
func (a *App) waitForChange() tea.Cmd {
	if a.changes == nil {
		return nil
	}
	changes := a.changes
	return func() tea.Msg {
		change, ok := <-changes
		if !ok {
			return messages.WatchStopped{}
		}
		return messages.CorpusChanged{Change: change}
	}
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.askView.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, tea.Quit
		}

		if a.currentView == messages.ViewHelp {
			// Any key leaves help
			a.currentView = messages.ViewAsk
			return a, nil
		}
		if keymap.Matches(msg.String(), a.keymap.Help) {
			a.currentView = messages.ViewHelp
			return a, nil
		}

		a.askView, cmd = a.askView.Update(msg)
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		return a, nil

	case messages.CorpusChanged:
		a.askView, cmd = a.askView.Update(msg)
		return a, tea.Batch(cmd, a.waitForChange())

	case messages.WatchStopped:
		a.changes = nil
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
		a.askView, cmd = a.askView.Update(msg)
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	a.askView, cmd = a.askView.Update(msg)
	return a, cmd
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	if a.currentView == messages.ViewHelp {
		return a.viewHelp()
	}
	return a.askView.View()
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\nType a question and press enter. Commands:\n")
	b.WriteString("  rebuild     Re-index the corpus\n")
	b.WriteString("  help        Show this help\n")
	b.WriteString("  exit, quit  Leave the session\n\nKeys:\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-10s  %s\n", h.Key, h.Desc)
		}
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Muted.Render("[any key] back"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// AskView returns the question and answer view.
func (a *App) AskView() *ask.View {
	return a.askView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions (for testing).
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.askView.SetDimensions(width, height)
}
