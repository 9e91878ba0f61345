package editor

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/kqlpad/internal/statement"
	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user triggers execution. Query is the
// whole buffer or, when Partial is set, the paragraph under the cursor.
type ExecuteQueryMsg struct {
	Query   string
	Partial bool
}

// Tabular operators offered by completion after a pipe.
var operators = []string{
	"as", "count", "distinct", "evaluate", "extend", "getschema", "join",
	"limit", "lookup", "make-series", "mv-expand", "order by", "parse",
	"project", "project-away", "project-rename", "render", "sample",
	"search", "sort by", "summarize", "take", "top", "union", "where",
}

// Model is the query editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	// Completion state
	completing  bool
	completions []string
	compIndex   int
	compBase    string // buffer text before the partial operator
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "StormEvents | take 10"
	ta.ShowLineNumbers = true
	ta.CharLimit = 0 // unlimited
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	ta.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{
		textarea: ta,
	}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(w - 2)
	m.textarea.SetHeight(h - 2)
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Focused returns whether the editor has focus.
func (m Model) Focused() bool {
	return m.focused
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.textarea.SetValue(query)
}

// CompletionActive reports whether Tab is cycling completions.
func (m Model) CompletionActive() bool {
	return m.completing
}

// Clear empties the editor.
func (m *Model) Clear() {
	m.textarea.Reset()
	m.cancelCompletion()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()

		switch key {
		case "ctrl+e", "f5":
			return m, m.execute(m.textarea.Value(), false)

		case "ctrl+r", "shift+f5":
			r, ok := statement.Paragraph(m.textarea.Value(), m.textarea.Line()+1)
			if !ok {
				return m, nil
			}
			return m, m.execute(statement.SelectLines(m.textarea.Value(), r), true)

		case "ctrl+k":
			m.Clear()
			return m, nil

		case "tab":
			if m.tryCompletion() {
				return m, nil
			}

		case "esc":
			if m.completing {
				m.cancelCompletion()
				return m, nil
			}
		}

		// Any key other than Tab/Esc cancels completion mode
		if m.completing && key != "tab" && key != "esc" {
			m.cancelCompletion()
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) execute(query string, partial bool) tea.Cmd {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	m.cancelCompletion()
	return func() tea.Msg {
		return ExecuteQueryMsg{Query: query, Partial: partial}
	}
}

// tryCompletion completes the operator being typed after the last pipe.
// Returns true if a completion was applied.
func (m *Model) tryCompletion() bool {
	val := m.textarea.Value()

	if m.completing && len(m.completions) > 0 {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
		m.applyCompletion()
		return true
	}

	matches := operatorCompletions(val)
	if len(matches) == 0 {
		return false
	}
	partial, _ := partialOperator(val)
	m.compBase = strings.TrimSuffix(val, partial)
	m.completing = true
	m.completions = matches
	m.compIndex = 0
	m.applyCompletion()
	return true
}

// operatorCompletions returns the operators matching the partial word that
// directly follows the last pipe in text.
func operatorCompletions(text string) []string {
	partial, ok := partialOperator(text)
	if !ok || partial == "" {
		return nil
	}
	var matches []string
	for _, op := range operators {
		if strings.HasPrefix(op, strings.ToLower(partial)) && op != partial {
			matches = append(matches, op)
		}
	}
	sort.Strings(matches)
	return matches
}

// partialOperator returns the text typed after the last pipe when it is a
// single word.
func partialOperator(text string) (string, bool) {
	idx := strings.LastIndex(text, "|")
	if idx < 0 {
		return "", false
	}
	tail := strings.TrimLeft(text[idx+1:], " \t")
	if strings.ContainsAny(tail, " \t\n") {
		return "", false
	}
	return tail, true
}

// applyCompletion replaces the partial word with the current candidate.
func (m *Model) applyCompletion() {
	if len(m.completions) == 0 {
		return
	}
	m.textarea.SetValue(m.compBase + m.completions[m.compIndex])
}

func (m *Model) cancelCompletion() {
	m.completing = false
	m.completions = nil
	m.compIndex = 0
	m.compBase = ""
}

// View renders the editor.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(0, 1)

	title := titleStyle.Render("Query Editor")

	var completionHint string
	if m.completing && len(m.completions) > 1 {
		hint := make([]string, 0, len(m.completions))
		for i, c := range m.completions {
			if i == m.compIndex {
				hint = append(hint, lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true).Render(c))
			} else {
				hint = append(hint, theme.StyleMuted.Render(c))
			}
		}
		completionHint = "\n" + lipgloss.NewStyle().Padding(0, 1).Render(
			theme.StyleMuted.Render("Tab: ")+strings.Join(hint, " │ "),
		)
	}

	return title + "\n" + m.textarea.View() + completionHint
}
