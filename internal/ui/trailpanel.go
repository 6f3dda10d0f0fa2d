package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/tabtrail/internal/theme"
	"github.com/vidyasagar/tabtrail/internal/trail"
)

// TrailPanel displays the activation trail: most recent activation first,
// with a marker on the entry the trail considers current. Entries whose tab
// has since closed are dimmed until the next prune catches them.
type TrailPanel struct {
	records  []trail.TabRecord
	current  int          // trail's current index, -1 when empty
	open     map[int]bool // tab ids still open
	cursor   int
	offset   int
	width    int
	height   int
	visible  bool
	lastGKey bool
}

// NewTrailPanel creates a new trail panel.
func NewTrailPanel() TrailPanel {
	return TrailPanel{current: -1}
}

// SetSnapshot updates the displayed trail. openIDs marks which tabs still
// exist so stale entries can be dimmed.
func (tp *TrailPanel) SetSnapshot(snap trail.Snapshot, openIDs []int) {
	tp.records = snap.Records
	tp.current = snap.CurrentIndex
	tp.open = make(map[int]bool, len(openIDs))
	for _, id := range openIDs {
		tp.open[id] = true
	}
	if tp.cursor >= len(tp.records) {
		tp.cursor = len(tp.records) - 1
	}
	if tp.cursor < 0 {
		tp.cursor = 0
	}
	tp.ensureVisible()
}

// SetSize updates the panel dimensions.
func (tp *TrailPanel) SetSize(w, h int) {
	tp.width = w
	tp.height = h
}

// Show makes the panel visible with the cursor on the current entry.
func (tp *TrailPanel) Show() {
	tp.visible = true
	tp.cursor = tp.current
	if tp.cursor < 0 {
		tp.cursor = 0
	}
	tp.offset = 0
	tp.lastGKey = false
	tp.ensureVisible()
}

// Hide closes the panel.
func (tp *TrailPanel) Hide() {
	tp.visible = false
	tp.lastGKey = false
}

// IsVisible reports whether the panel is shown.
func (tp *TrailPanel) IsVisible() bool {
	return tp.visible
}

// Toggle switches visibility.
func (tp *TrailPanel) Toggle() {
	if tp.visible {
		tp.Hide()
	} else {
		tp.Show()
	}
}

// CursorUp moves the cursor up one entry.
func (tp *TrailPanel) CursorUp() {
	tp.lastGKey = false
	if tp.cursor > 0 {
		tp.cursor--
		tp.ensureVisible()
	}
}

// CursorDown moves the cursor down one entry.
func (tp *TrailPanel) CursorDown() {
	tp.lastGKey = false
	if tp.cursor < len(tp.records)-1 {
		tp.cursor++
		tp.ensureVisible()
	}
}

// GotoTop moves to the first entry.
func (tp *TrailPanel) GotoTop() {
	tp.lastGKey = false
	tp.cursor = 0
	tp.offset = 0
}

// GotoBottom moves to the last entry.
func (tp *TrailPanel) GotoBottom() {
	tp.lastGKey = false
	if len(tp.records) > 0 {
		tp.cursor = len(tp.records) - 1
		tp.ensureVisible()
	}
}

// HandleGKey handles the "g" key for gg detection.
// Returns true if "gg" was completed.
func (tp *TrailPanel) HandleGKey() bool {
	if tp.lastGKey {
		tp.GotoTop()
		return true
	}
	tp.lastGKey = true
	return false
}

// ResetGKey resets the g key state.
func (tp *TrailPanel) ResetGKey() {
	tp.lastGKey = false
}

// SelectedIndex returns the cursor position in the trail, or -1 when empty.
func (tp *TrailPanel) SelectedIndex() int {
	if len(tp.records) == 0 {
		return -1
	}
	return tp.cursor
}

func (tp *TrailPanel) visibleCount() int {
	available := tp.height - 3
	if available <= 0 {
		return 1
	}
	return available
}

func (tp *TrailPanel) ensureVisible() {
	visible := tp.visibleCount()
	if tp.cursor < tp.offset {
		tp.offset = tp.cursor
	}
	if tp.cursor >= tp.offset+visible {
		tp.offset = tp.cursor - visible + 1
	}
	if tp.offset < 0 {
		tp.offset = 0
	}
}

// View renders the trail panel.
func (tp *TrailPanel) View() string {
	if !tp.visible {
		return ""
	}

	t := theme.Current

	panelStyle := lipgloss.NewStyle().
		Width(tp.width).
		Height(tp.height).
		Background(t.Background)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Background(t.Surface).
		Width(tp.width).
		Padding(0, 1)

	separatorStyle := lipgloss.NewStyle().
		Foreground(t.Border)

	selectedStyle := lipgloss.NewStyle().
		Foreground(t.TextBright).
		Background(t.TabActive).
		Bold(true).
		Width(tp.width).
		Padding(0, 1)

	normalStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Width(tp.width).
		Padding(0, 1)

	staleStyle := lipgloss.NewStyle().
		Foreground(t.TrailStale).
		Width(tp.width).
		Padding(0, 1)

	dimStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Padding(0, 1)

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("🧭 Activation Trail"))
	sb.WriteString("\n")

	sepWidth := tp.width - 2
	if sepWidth < 1 {
		sepWidth = 1
	}
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", sepWidth)))
	sb.WriteString("\n")

	if len(tp.records) == 0 {
		sb.WriteString(dimStyle.Render("No activations yet."))
		sb.WriteString("\n")
		return panelStyle.Render(sb.String())
	}

	visible := tp.visibleCount()
	end := tp.offset + visible
	if end > len(tp.records) {
		end = len(tp.records)
	}

	maxTitleLen := tp.width - 14
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}

	for i := tp.offset; i < end; i++ {
		rec := tp.records[i]

		title := rec.Title
		if title == "" {
			title = fmt.Sprintf("Tab %d", rec.TabID)
		}
		if len(title) > maxTitleLen {
			title = title[:maxTitleLen-3] + "..."
		}

		marker := " "
		if i == tp.current {
			marker = "●"
		}

		line := fmt.Sprintf("%s %s  (tab %d)", marker, title, rec.TabID)

		switch {
		case i == tp.cursor:
			sb.WriteString(selectedStyle.Render("▸" + line[1:]))
		case !tp.open[rec.TabID]:
			sb.WriteString(staleStyle.Render(line))
		default:
			sb.WriteString(normalStyle.Render(line))
		}
		sb.WriteString("\n")
	}

	linesUsed := 2 + (end - tp.offset)
	remaining := tp.height - linesUsed
	if remaining > 1 {
		for i := 0; i < remaining-1; i++ {
			sb.WriteString("\n")
		}
		hintStyle := lipgloss.NewStyle().
			Foreground(t.TextDim).
			Italic(true).
			Padding(0, 1)
		sb.WriteString(hintStyle.Render("j/k:move  Enter:jump  Esc:close"))
	}

	return panelStyle.Render(sb.String())
}
