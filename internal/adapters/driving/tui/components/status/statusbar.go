// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// State represents the current application state for display.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateIndexing State = "indexing"
	StateError    State = "error"
	StateAnswered State = "answered"
)

// Bar displays application status, index summary and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	status  domain.AnswerStatus
	index   *domain.CollectionInfo
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update handles status bar messages.
func (s *Bar) Update(_ tea.Msg) (*Bar, tea.Cmd) {
	// Bar is passive, updated via Set methods
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

// renderLeft renders the state and index summary.
func (s *Bar) renderLeft() string {
	var state string
	switch s.state {
	case StateThinking:
		state = s.styles.Muted.Render("Thinking...")
	case StateIndexing:
		state = s.styles.Muted.Render("Indexing...")
	case StateError:
		if s.message != "" {
			state = s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		} else {
			state = s.styles.Error.Render("Error")
		}
	case StateAnswered:
		state = s.styles.StatusLabel(s.status).Render(s.status.Description())
	case StateReady:
		state = s.styles.Muted.Render("Ready")
	default:
		state = s.styles.Muted.Render("Ready")
	}

	if s.state != StateError && s.message != "" {
		state += s.styles.Muted.Render(" · " + s.message)
	}
	return state + s.styles.Muted.Render(" · "+indexSummary(s.index))
}

// renderRight renders keybinding hints.
func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	if s.state == StateAnswered {
		bindings = s.keymap.AnswerHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// indexSummary describes the live collection in a few words.
func indexSummary(info *domain.CollectionInfo) string {
	switch info.State() {
	case domain.CollectionMissing:
		return "no index"
	case domain.CollectionEmpty:
		return "empty index"
	default:
		return fmt.Sprintf("%d chunks", info.ChunkCount)
	}
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetAnswerStatus records the status of the last answer.
func (s *Bar) SetAnswerStatus(status domain.AnswerStatus) {
	s.status = status
}

// AnswerStatus returns the status of the last answer.
func (s *Bar) AnswerStatus() domain.AnswerStatus {
	return s.status
}

// SetIndex sets the collection summary. Nil means no index.
func (s *Bar) SetIndex(info *domain.CollectionInfo) {
	s.index = info
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to default state. The index summary is kept.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.status = ""
}
