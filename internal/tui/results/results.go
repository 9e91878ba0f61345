package results

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/kqlpad/internal/app"
	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/display"
	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

// Model is the query results component. It shows one outcome of the last
// run at a time.
type Model struct {
	outcomes    []app.Outcome
	current     int
	err         error
	width       int
	height      int
	focused     bool
	loading     bool
	showDetails bool

	scrollY   int
	cursorY   int
	cursorX   int
	colWidths []int

	exportDir string
}

// New creates a new results model. Exports are written to exportDir.
func New(exportDir string) Model {
	return Model{exportDir: exportDir}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the results pane has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetOutcomes replaces the displayed run.
func (m *Model) SetOutcomes(outcomes []app.Outcome) {
	m.outcomes = outcomes
	m.err = nil
	m.current = 0
	m.loading = false
	m.resetView()
}

// ReplaceOutcome swaps in a retried outcome with the same index.
func (m *Model) ReplaceOutcome(o app.Outcome) {
	m.loading = false
	for i := range m.outcomes {
		if m.outcomes[i].Index == o.Index {
			m.outcomes[i] = o
			m.current = i
			m.resetView()
			return
		}
	}
	m.outcomes = append(m.outcomes, o)
	m.current = len(m.outcomes) - 1
	m.resetView()
}

// SetError shows a run-level error such as an empty buffer.
func (m *Model) SetError(err error) {
	m.err = err
	m.outcomes = nil
	m.loading = false
	m.resetView()
}

// Current returns the outcome on screen.
func (m Model) Current() (app.Outcome, bool) {
	if m.current < 0 || m.current >= len(m.outcomes) {
		return app.Outcome{}, false
	}
	return m.outcomes[m.current], true
}

func (m *Model) resetView() {
	m.scrollY = 0
	m.cursorY = 0
	m.cursorX = 0
	m.showDetails = false
	m.calculateColumnWidths()
}

func (m Model) result() *database.TabularResult {
	o, ok := m.Current()
	if !ok || o.Failed() {
		return nil
	}
	return o.Result
}

func (m *Model) calculateColumnWidths() {
	result := m.result()
	if result == nil || len(result.Columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(result.Columns))

	// Use display width (not byte length) for accurate measurement
	for i, col := range result.Columns {
		m.colWidths[i] = lipgloss.Width(col)
	}

	for _, row := range result.Rows {
		for i, cell := range row {
			w := lipgloss.Width(cell)
			if i < len(m.colWidths) && w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}

	// Enforce minimum of 1 and cap at 40
	for i := range m.colWidths {
		if m.colWidths[i] < 1 {
			m.colWidths[i] = 1
		}
		if m.colWidths[i] > 40 {
			m.colWidths[i] = 40
		}
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "]":
		if m.current < len(m.outcomes)-1 {
			m.current++
			m.resetView()
		}
	case "[":
		if m.current > 0 {
			m.current--
			m.resetView()
		}
	case "d":
		if o, ok := m.Current(); ok && o.Failed() {
			m.showDetails = !m.showDetails
		}
	case "r":
		if o, ok := m.Current(); ok && o.Failed() {
			m.loading = true
			return m, func() tea.Msg { return RetryMsg{Outcome: o} }
		}
	case "y":
		return m, m.copyCellCmd()
	case "Y":
		return m, m.copyRowCmd()
	case "c":
		return m, m.exportCmd("csv")
	case "J":
		return m, m.exportCmd("json")
	case "P":
		return m, m.exportCmd("parquet")
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
	case "right", "l":
		if m.cursorX < len(m.colWidths)-1 {
			m.cursorX++
		}
	case "pgup":
		m.moveCursor(-m.visibleRows())
	case "pgdown":
		m.moveCursor(m.visibleRows())
	}

	return m, nil
}

func (m *Model) moveCursor(delta int) {
	result := m.result()
	if result == nil || result.RowCount == 0 {
		return
	}
	m.cursorY += delta
	if m.cursorY < 0 {
		m.cursorY = 0
	}
	if m.cursorY > result.RowCount-1 {
		m.cursorY = result.RowCount - 1
	}
	visible := m.visibleRows()
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if m.cursorY >= m.scrollY+visible {
		m.scrollY = m.cursorY - visible + 1
	}
}

func (m Model) visibleRows() int {
	visible := m.height - 5
	if visible < 1 {
		visible = 1
	}
	return visible
}

// View renders the results pane.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)

	title := titleStyle.Render("Results")
	if len(m.outcomes) > 1 {
		title += theme.StyleMuted.Render(fmt.Sprintf(" %d/%d  [ ]: switch", m.current+1, len(m.outcomes)))
	}

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Executing query...")
	}

	if m.err != nil {
		return title + "\n" + theme.StyleError.Render("  "+m.err.Error())
	}

	o, ok := m.Current()
	if !ok {
		return title + "\n" + theme.StyleMuted.Render("  Execute a query to see results")
	}

	header := title + "  " + theme.StyleMuted.Render(display.Truncate(strings.ReplaceAll(o.Statement.Text, "\n", " "), m.width/2))

	if o.Failed() {
		body := display.Error(*o.Err)
		if m.showDetails {
			body = display.Details(*o.Err)
		}
		hints := theme.StyleMuted.Render("d: details  r: retry")
		return header + "\n" + indent(body) + "\n\n  " + hints
	}

	if o.Unreadable() {
		return header + "\n" + indent(display.Diagnostic(*o.Result))
	}

	stats := theme.StyleMuted.Render(display.Stats(*o.Result))
	if o.Empty() {
		return header + "  " + stats + "\n" + theme.StyleSuccess.Render("  "+display.EmptyMessage)
	}

	var b strings.Builder
	b.WriteString(header + "  " + stats)
	b.WriteString("\n")
	b.WriteString(m.renderRow(o.Result.Columns, -1))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())

	visible := m.visibleRows()
	for i := m.scrollY; i < len(o.Result.Rows) && i < m.scrollY+visible; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(o.Result.Rows[i], i))
	}

	return b.String()
}

// renderRow renders one line of the grid. row is -1 for the header.
func (m Model) renderRow(cells []string, row int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		width := 10
		if i < len(m.colWidths) {
			width = m.colWidths[i]
		}

		text := truncateCell(strings.ReplaceAll(cell, "\n", " "), width)

		// Pad to column width; guard against negative (never panic)
		if pad := width - lipgloss.Width(text); pad > 0 {
			text += strings.Repeat(" ", pad)
		}

		switch {
		case row < 0:
			parts[i] = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorPrimary).
				Render(text)
		case m.focused && row == m.cursorY && i == m.cursorX:
			parts[i] = lipgloss.NewStyle().
				Reverse(true).
				Render(text)
		case cell == "null":
			parts[i] = theme.StyleMuted.Render(text)
		default:
			parts[i] = text
		}
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator() string {
	parts := make([]string, len(m.colWidths))
	for i, w := range m.colWidths {
		parts[i] = strings.Repeat("─", w)
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

func truncateCell(s string, width int) string {
	if width <= 1 && lipgloss.Width(s) > width {
		return "…"
	}
	return display.Truncate(s, width)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
