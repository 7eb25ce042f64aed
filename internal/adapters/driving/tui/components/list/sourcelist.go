// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docusearch/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docusearch/internal/core/domain"
)

// SourceList displays the chunks behind an answer in a navigable list.
type SourceList struct {
	sources  []domain.ScoredChunk
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates a new source list component.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the source list.
func (r *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyUp:
			r.MoveUp()
		case tea.KeyDown:
			r.MoveDown()
		default:
		}
	}
	return r, nil
}

// View renders the source list.
func (r *SourceList) View() string {
	if len(r.sources) == 0 {
		return r.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(r.sources)+2)
	header := r.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(r.sources)))
	lines = append(lines, header, "")

	// Each source takes two lines (title + preview)
	visibleCount := (r.height - 2) / 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if r.selected >= visibleCount {
		start = r.selected - visibleCount + 1
	}
	end := min(start+visibleCount, len(r.sources))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderSource(i, r.sources[i]))
	}

	return strings.Join(lines, "\n")
}

// renderSource formats one source as "[n] file (score)" plus a preview line.
func (r *SourceList) renderSource(index int, hit domain.ScoredChunk) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	label := Label(index, hit)
	var titleLine string
	if index == r.selected {
		titleLine = r.styles.Selected.Render(indicator + label)
	} else {
		titleLine = r.styles.Normal.Render(indicator + label)
	}

	// Truncate preview to fit width
	maxPreview := r.width - 6
	if maxPreview < 20 {
		maxPreview = 20
	}
	previewLine := r.styles.Muted.Render("    " + hit.Preview(min(maxPreview, domain.PreviewLength)))

	return titleLine + "\n" + previewLine
}

// Label returns the citation line for a source: "[n] file (p. 3) (0.82)".
func Label(index int, hit domain.ScoredChunk) string {
	label := fmt.Sprintf("[%d] %s", index+1, hit.Chunk.SourceFile())
	if page := hit.Chunk.Page(); page > 0 {
		label += fmt.Sprintf(" (p. %d)", page)
	}
	return label + fmt.Sprintf(" (%.2f)", hit.Score)
}

// SetSources updates the source list.
func (r *SourceList) SetSources(sources []domain.ScoredChunk) {
	r.sources = sources
	r.selected = 0
}

// Sources returns the current sources.
func (r *SourceList) Sources() []domain.ScoredChunk {
	return r.sources
}

// Selected returns the index of the selected source.
func (r *SourceList) Selected() int {
	return r.selected
}

// SelectedSource returns the currently selected source, or nil if none.
func (r *SourceList) SelectedSource() *domain.ScoredChunk {
	if len(r.sources) == 0 || r.selected < 0 || r.selected >= len(r.sources) {
		return nil
	}
	return &r.sources[r.selected]
}

// MoveUp moves selection up.
func (r *SourceList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *SourceList) MoveDown() {
	if r.selected < len(r.sources)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *SourceList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of sources.
func (r *SourceList) Count() int {
	return len(r.sources)
}
