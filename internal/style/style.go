// Package style provides consistent terminal styling using Lipgloss.
// Colors follow the Ayu palette in light and dark variants.
package style

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette.
var (
	colorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	colorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	colorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	colorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	colorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

// Semantic icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✖"
)

var (
	// Success style for positive outcomes (green)
	Success lipgloss.Style

	// Warning style for cautionary messages (yellow)
	Warning lipgloss.Style

	// Error style for failures (red)
	Error lipgloss.Style

	// Info style for informational messages (blue)
	Info lipgloss.Style

	// Dim style for secondary information (gray)
	Dim lipgloss.Style

	// Bold style for emphasis
	Bold lipgloss.Style

	// Reasoning style for model thinking traces streamed during chat
	Reasoning lipgloss.Style
)

func init() {
	apply(true)
}

func apply(colored bool) {
	if !colored {
		Success = lipgloss.NewStyle()
		Warning = lipgloss.NewStyle()
		Error = lipgloss.NewStyle()
		Info = lipgloss.NewStyle()
		Dim = lipgloss.NewStyle()
		Bold = lipgloss.NewStyle()
		Reasoning = lipgloss.NewStyle()
		return
	}
	Success = lipgloss.NewStyle().Foreground(colorPass).Bold(true)
	Warning = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	Error = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	Info = lipgloss.NewStyle().Foreground(colorAccent)
	Dim = lipgloss.NewStyle().Foreground(colorMuted)
	Bold = lipgloss.NewStyle().Bold(true)
	Reasoning = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
}

// SetColorMode overrides style rendering based on --color flag or NO_COLOR env.
func SetColorMode(mode string) {
	switch mode {
	case "never":
		_ = os.Setenv("NO_COLOR", "1")
		apply(false)
	case "always":
		_ = os.Unsetenv("NO_COLOR")
		_ = os.Setenv("CLICOLOR_FORCE", "1")
		apply(true)
	}
}
