package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/tabtrail/internal/theme"
)

// StatusBar shows page and trail info at the bottom of the screen.
type StatusBar struct {
	title      string
	loading    bool
	scrollInfo string
	mode       string
	linkCount  int
	trailPos   int // 1-based position in the trail, 0 when empty
	trailLen   int
	width      int
	message    string // temporary status message
}

// NewStatusBar creates a new status bar.
func NewStatusBar() StatusBar {
	return StatusBar{mode: "NORMAL"}
}

// SetWidth sets the status bar width.
func (s *StatusBar) SetWidth(w int) {
	s.width = w
}

// SetTitle updates the page title.
func (s *StatusBar) SetTitle(title string) {
	s.title = title
}

// SetLoading sets the loading indicator state.
func (s *StatusBar) SetLoading(loading bool) {
	s.loading = loading
}

// SetScrollInfo sets the scroll position string (e.g. "42%", "TOP", "BOT").
func (s *StatusBar) SetScrollInfo(info string) {
	s.scrollInfo = info
}

// SetMode sets the current mode indicator (NORMAL, INSERT, COMMAND, TRAIL).
func (s *StatusBar) SetMode(mode string) {
	s.mode = mode
}

// SetLinkCount sets the total link count displayed.
func (s *StatusBar) SetLinkCount(n int) {
	s.linkCount = n
}

// SetTrail sets the trail position indicator. pos is 1-based; pass 0,0
// to hide the indicator.
func (s *StatusBar) SetTrail(pos, length int) {
	s.trailPos = pos
	s.trailLen = length
}

// SetMessage sets a temporary status message.
func (s *StatusBar) SetMessage(msg string) {
	s.message = msg
}

// View renders the status bar.
func (s *StatusBar) View() string {
	t := theme.Current

	modeStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(t.Background)

	switch s.mode {
	case "NORMAL":
		modeStyle = modeStyle.Background(t.Primary)
	case "INSERT":
		modeStyle = modeStyle.Background(t.Success)
	case "COMMAND":
		modeStyle = modeStyle.Background(t.Accent)
	case "TRAIL":
		modeStyle = modeStyle.Background(t.TrailCursor)
	default:
		modeStyle = modeStyle.Background(t.TabInactive)
	}

	var modeIcon string
	switch s.mode {
	case "NORMAL":
		modeIcon = "👁 "
	case "INSERT":
		modeIcon = "✏ "
	case "COMMAND":
		modeIcon = "⌘ "
	case "TRAIL":
		modeIcon = "🧭 "
	}
	mode := modeStyle.Render(modeIcon + s.mode)

	barStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Background(t.Surface)

	var left string
	if s.loading {
		left = lipgloss.NewStyle().
			Foreground(t.Warning).
			Background(t.Surface).
			Bold(true).
			Padding(0, 1).
			Render("⏳ Loading...")
	} else if s.message != "" {
		left = lipgloss.NewStyle().
			Foreground(t.Accent).
			Background(t.Surface).
			Padding(0, 1).
			Render(s.message)
	} else if s.title != "" {
		left = lipgloss.NewStyle().
			Foreground(t.Text).
			Background(t.Surface).
			Padding(0, 1).
			Render(s.title)
	}

	var right string
	rightStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface).
		Padding(0, 1)

	if s.trailLen > 0 {
		trailStyle := lipgloss.NewStyle().
			Foreground(t.TrailCursor).
			Background(t.Surface).
			Padding(0, 1)
		right += trailStyle.Render(fmt.Sprintf("🧭 %d/%d", s.trailPos, s.trailLen))
	}

	if s.linkCount > 0 {
		right += rightStyle.Render(fmt.Sprintf("🔗 %d links", s.linkCount))
	}

	scrollStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Background(t.Surface).
		Padding(0, 1)
	right += scrollStyle.Render("📜 " + s.scrollInfo)

	spacerWidth := s.width - lipgloss.Width(mode) - lipgloss.Width(left) - lipgloss.Width(right)
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	spacer := lipgloss.NewStyle().
		Background(t.Surface).
		Render(fmt.Sprintf("%*s", spacerWidth, ""))

	return barStyle.Render(mode + left + spacer + right)
}
