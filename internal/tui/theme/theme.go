package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Minimalist and terminal-friendly.
var (
	ColorPrimary   = lipgloss.Color("63")  // Purple
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorBorder    = lipgloss.Color("238") // Dark gray
	ColorMuted     = lipgloss.Color("245") // Light gray
	ColorHighlight = lipgloss.Color("229") // Yellow
)

// Shared styles used across TUI components and the batch printer.
var (
	StyleBorder       lipgloss.Style
	StyleActiveBorder lipgloss.Style
	StyleTitle        lipgloss.Style
	StyleMuted        lipgloss.Style
	StyleError        lipgloss.Style
	StyleWarning      lipgloss.Style
	StyleSuccess      lipgloss.Style
	StyleStatusBar    lipgloss.Style
)

func init() {
	buildStyles()
}

// Use switches the palette. "default" is the color palette, "mono" drops
// colors for terminals or logs that do not render them.
func Use(name string) error {
	switch name {
	case "", "default":
		ColorPrimary = lipgloss.Color("63")
		ColorSecondary = lipgloss.Color("241")
		ColorSuccess = lipgloss.Color("42")
		ColorWarning = lipgloss.Color("214")
		ColorError = lipgloss.Color("196")
		ColorBorder = lipgloss.Color("238")
		ColorMuted = lipgloss.Color("245")
		ColorHighlight = lipgloss.Color("229")
	case "mono":
		for _, c := range []*lipgloss.Color{
			&ColorPrimary, &ColorSecondary, &ColorSuccess, &ColorWarning,
			&ColorError, &ColorBorder, &ColorMuted, &ColorHighlight,
		} {
			*c = lipgloss.Color("")
		}
	default:
		return fmt.Errorf("unknown theme %q", name)
	}
	buildStyles()
	return nil
}

func buildStyles() {
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleActiveBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary)

	StyleTitle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)

	StyleMuted = lipgloss.NewStyle().
		Foreground(ColorMuted)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorError)

	StyleWarning = lipgloss.NewStyle().
		Foreground(ColorWarning)

	StyleSuccess = lipgloss.NewStyle().
		Foreground(ColorSuccess)

	StyleStatusBar = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1)
}
