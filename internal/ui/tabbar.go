package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/vidyasagar/tabtrail/internal/tabs"
	"github.com/vidyasagar/tabtrail/internal/theme"
)

// TabBar renders the open tabs. Tab state lives in tabs.Manager; the bar
// only draws whatever list it is handed.
type TabBar struct {
	tabs       []tabs.Tab
	activeID   int
	width      int
	maxVisible int
}

// NewTabBar creates an empty tab bar.
func NewTabBar() TabBar {
	return TabBar{maxVisible: 8}
}

// SetWidth sets the tab bar width.
func (tb *TabBar) SetWidth(w int) {
	tb.width = w
	tb.maxVisible = w / 20
	if tb.maxVisible < 2 {
		tb.maxVisible = 2
	}
	if tb.maxVisible > 10 {
		tb.maxVisible = 10
	}
}

// SetTabs replaces the rendered tab list and active tab id.
func (tb *TabBar) SetTabs(list []tabs.Tab, activeID int) {
	tb.tabs = list
	tb.activeID = activeID
}

// View renders the tab bar.
func (tb *TabBar) View() string {
	t := theme.Current

	activeStyle := lipgloss.NewStyle().
		Foreground(t.TextBright).
		Background(t.TabActive).
		Bold(true).
		Padding(0, 1)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.TabInactive).
		Padding(0, 1)

	separatorStyle := lipgloss.NewStyle().
		Foreground(t.Border)

	activeIdx := 0
	for i, tab := range tb.tabs {
		if tab.ID == tb.activeID {
			activeIdx = i
			break
		}
	}

	// Window the visible range around the active tab.
	start := 0
	end := len(tb.tabs)
	if end > tb.maxVisible {
		start = activeIdx - tb.maxVisible/2
		if start < 0 {
			start = 0
		}
		end = start + tb.maxVisible
		if end > len(tb.tabs) {
			end = len(tb.tabs)
			start = end - tb.maxVisible
			if start < 0 {
				start = 0
			}
		}
	}

	var result string

	if start > 0 {
		result += lipgloss.NewStyle().Foreground(t.TextDim).
			Render(fmt.Sprintf(" +%d ", start))
	}

	for i := start; i < end; i++ {
		title := tb.tabs[i].Title
		if title == "" {
			title = "New Tab"
		}

		maxTitleLen := (tb.width / tb.maxVisible) - 4
		if maxTitleLen < 8 {
			maxTitleLen = 8
		}
		if len(title) > maxTitleLen {
			title = title[:maxTitleLen-3] + "..."
		}

		if tb.tabs[i].ID == tb.activeID {
			result += activeStyle.Render(fmt.Sprintf(" 🌐 %s ", title))
		} else {
			result += inactiveStyle.Render(fmt.Sprintf(" %s ", title))
		}

		if i < end-1 {
			result += separatorStyle.Render("|")
		}
	}

	if end < len(tb.tabs) {
		result += lipgloss.NewStyle().Foreground(t.TextDim).
			Render(fmt.Sprintf(" +%d ", len(tb.tabs)-end))
	}

	barStyle := lipgloss.NewStyle().
		Background(t.Surface).
		Width(tb.width)

	return barStyle.Render(result)
}
