package statusbar

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

const hints = "Ctrl+E: Run │ Ctrl+R: Run paragraph │ Tab: Switch pane │ ?: Help"

// Model is the status bar component.
type Model struct {
	width      int
	connection string
	activePane string
	message    string
	running    bool
}

// New creates a new status bar model.
func New() Model {
	return Model{
		activePane: "editor",
	}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnection shows the active connection. An empty label means none.
func (m *Model) SetConnection(label string) {
	m.connection = label
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetRunning toggles the execution indicator.
func (m *Model) SetRunning(running bool) {
	m.running = running
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages (status bar has no interactive behavior).
func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var connIndicator string
	switch {
	case m.connection == "":
		connIndicator = lipgloss.NewStyle().
			Foreground(theme.ColorError).
			Render("●") + " no connection"
	case m.running:
		connIndicator = lipgloss.NewStyle().
			Foreground(theme.ColorWarning).
			Render("●") + " " + m.connection + " (running, esc: cancel)"
	default:
		connIndicator = lipgloss.NewStyle().
			Foreground(theme.ColorSuccess).
			Render("●") + " " + m.connection
	}

	right := hints
	if m.message != "" {
		right = m.message
	}

	leftLen := lipgloss.Width(connIndicator)
	rightLen := lipgloss.Width(right)
	padding := m.width - leftLen - rightLen - 4 // borders + spacing
	if padding < 1 {
		padding = 1
	}

	bar := connIndicator + strings.Repeat(" ", padding) + right

	return style.Render(bar)
}
