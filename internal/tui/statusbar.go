package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// statusBar renders the bottom bar showing the model context and key hints.
type statusBar struct {
	context string
	width   int
}

func newStatusBar(context string) statusBar {
	return statusBar{context: context}
}

func (s statusBar) render(hints string) string {
	left := styleDim.Render(s.context)
	right := styleDim.Render(hints)

	gap := s.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return styleBar.Width(s.width).Render(
		fmt.Sprintf("%s%*s%s", left, gap, "", right),
	)
}
