package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/kqlpad/internal/app"
	"github.com/joacominatel/kqlpad/internal/config"
	"github.com/joacominatel/kqlpad/internal/display"
	"github.com/joacominatel/kqlpad/internal/tui/editor"
	"github.com/joacominatel/kqlpad/internal/tui/results"
	"github.com/joacominatel/kqlpad/internal/tui/statusbar"
	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

// Pane identifies a focusable area.
type Pane int

const (
	PaneEditor Pane = iota
	PaneResults
)

func (p Pane) String() string {
	switch p {
	case PaneEditor:
		return "editor"
	case PaneResults:
		return "results"
	default:
		return "unknown"
	}
}

// AppMode tracks the current UI state.
type AppMode int

const (
	ModeSelectConnection AppMode = iota // show saved connections list
	ModeConnect                         // manual URL input
	ModeMain                            // main TUI
)

// Custom messages for async operations.
type (
	executedMsg struct {
		outcomes []app.Outcome
		err      error
	}
	retriedMsg struct {
		outcome app.Outcome
	}
	connectionSavedMsg struct {
		err error
	}
)

// Options configures the interactive host.
type Options struct {
	// ConfigDir is where the connection list is saved. Empty means the
	// default directory.
	ConfigDir string
	// ExportDir receives result exports.
	ExportDir string
	// Connection, when set, skips the connection picker.
	Connection *config.Connection
	// Query prefills the editor.
	Query string
}

// Model is the top-level bubbletea model orchestrating all components.
type Model struct {
	service    *app.Service
	cfg        *config.Config
	opts       Options
	editor     editor.Model
	results    results.Model
	statusbar  statusbar.Model
	connInput  textinput.Model
	activePane Pane
	mode       AppMode
	width      int
	height     int
	err        error
	showHelp   bool

	conn       *config.Connection
	connCursor int
	running    bool
	cancel     context.CancelFunc
}

// NewModel creates the top-level model.
func NewModel(service *app.Service, cfg *config.Config, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "https://help.kusto.windows.net/Samples"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 70

	mode := ModeConnect
	if len(cfg.Connections) > 0 {
		mode = ModeSelectConnection
	}

	m := Model{
		service:   service,
		cfg:       cfg,
		opts:      opts,
		editor:    editor.New(),
		results:   results.New(opts.ExportDir),
		statusbar: statusbar.New(),
		connInput: ti,
		mode:      mode,
	}
	if opts.Query != "" {
		m.editor.SetQuery(opts.Query)
	}
	if opts.Connection != nil {
		m.useConnection(*opts.Connection)
	}
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.editor.Init())
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		// Global keys
		switch msg.String() {
		case "ctrl+c":
			m.stopRunning()
			return m, tea.Quit
		case "esc":
			if m.running {
				m.stopRunning()
				m.statusbar.SetMessage("Cancelling...")
				return m, nil
			}
		}

		// Help toggle
		if msg.String() == "?" && m.mode == ModeMain && m.activePane != PaneEditor {
			m.showHelp = !m.showHelp
			return m, nil
		}

		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		// Mode-specific key handling
		switch m.mode {
		case ModeSelectConnection:
			return m.updateSelectConnection(msg)
		case ModeConnect:
			return m.updateConnect(msg)
		case ModeMain:
			return m.updateMain(msg)
		}

	case connectionSavedMsg:
		if msg.err != nil {
			m.statusbar.SetMessage("Warning: could not save connection")
		}
		return m, nil

	case editor.ExecuteQueryMsg:
		if m.running {
			return m, nil
		}
		label := "Executing query..."
		if msg.Partial {
			label = "Executing paragraph..."
		}
		m.results.SetLoading(true)
		m.statusbar.SetMessage(label)
		return m, m.startExecute(msg.Query)

	case executedMsg:
		m.finishRunning()
		if msg.err != nil && len(msg.outcomes) == 0 {
			m.results.SetError(msg.err)
			m.statusbar.SetMessage("")
			return m, nil
		}
		m.results.SetOutcomes(msg.outcomes)
		m.statusbar.SetMessage(display.Summary(msg.outcomes))
		if failedFirst(msg.outcomes) {
			m.setFocus(PaneResults)
		}
		return m, nil

	case results.RetryMsg:
		if m.running {
			return m, nil
		}
		m.statusbar.SetMessage("Retrying statement...")
		return m, m.startRetry(msg.Outcome)

	case retriedMsg:
		m.finishRunning()
		m.results.ReplaceOutcome(msg.outcome)
		m.statusbar.SetMessage("")
		return m, nil

	case results.StatusNotifyMsg:
		m.statusbar.SetMessage(msg.Message)
		return m, nil
	}

	// Pass through to active component
	if m.mode == ModeMain {
		return m.updateComponents(msg)
	}

	return m, nil
}

func failedFirst(outcomes []app.Outcome) bool {
	return len(outcomes) > 0 && (outcomes[0].Failed() || outcomes[0].Unreadable())
}

func (m Model) updateSelectConnection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	connCount := len(m.cfg.Connections)

	switch msg.String() {
	case "up", "k":
		if m.connCursor > 0 {
			m.connCursor--
		}
	case "down", "j":
		if m.connCursor < connCount { // connCount = last item is "New connection"
			m.connCursor++
		}
	case "enter":
		if m.connCursor < connCount {
			conn := m.cfg.Connections[m.connCursor]
			m.useConnection(conn)
			m.cfg.Preferences.DefaultConnection = conn.Name
			return m, m.saveConfigCmd()
		}
		m.mode = ModeConnect
		m.connInput.Focus()
		return m, nil
	case "n":
		m.mode = ModeConnect
		m.connInput.Focus()
		return m, nil
	case "q":
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) updateConnect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		raw := strings.TrimSpace(m.connInput.Value())
		if raw == "" {
			return m, nil
		}
		conn, err := config.ParseURL(raw)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.cfg.AddConnection(conn)
		m.cfg.Preferences.DefaultConnection = conn.Name
		m.connInput.Reset()
		m.useConnection(conn)
		return m, m.saveConfigCmd()
	case "esc":
		if len(m.cfg.Connections) > 0 {
			m.mode = ModeSelectConnection
			m.err = nil
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.connInput, cmd = m.connInput.Update(msg)
	return m, cmd
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		if m.activePane != PaneEditor {
			return m, tea.Quit
		}
	case "ctrl+o":
		if !m.running {
			m.mode = ModeSelectConnection
			return m, nil
		}
	case "tab":
		if m.activePane == PaneEditor && m.editor.CompletionActive() {
			return m.updateComponents(msg)
		}
		m.cyclePane()
		return m, nil
	case "shift+tab":
		m.cyclePane()
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.activePane {
	case PaneEditor:
		m.editor, cmd = m.editor.Update(msg)
	case PaneResults:
		m.results, cmd = m.results.Update(msg)
	}

	return m, cmd
}

// useConnection makes conn the target of later runs.
func (m *Model) useConnection(conn config.Connection) {
	m.conn = &conn
	m.err = nil
	m.mode = ModeMain
	m.statusbar.SetConnection(conn.Name + " (" + conn.DisplayString() + ")")
	m.setFocus(PaneEditor)
	m.layout()
}

func (m *Model) cyclePane() {
	if m.activePane == PaneEditor {
		m.setFocus(PaneResults)
		return
	}
	m.setFocus(PaneEditor)
}

func (m *Model) setFocus(pane Pane) {
	m.activePane = pane
	m.editor.SetFocused(pane == PaneEditor)
	m.results.SetFocused(pane == PaneResults)
	m.statusbar.SetActivePane(pane.String())
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	statusHeight := 1
	availHeight := m.height - statusHeight

	editorHeight := availHeight * 40 / 100
	if editorHeight < 5 {
		editorHeight = 5
	}
	resultsHeight := availHeight - editorHeight - 1

	m.editor.SetSize(m.width-2, editorHeight)
	m.results.SetSize(m.width-2, resultsHeight)
	m.statusbar.SetWidth(m.width)
}

func (m *Model) stopRunning() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Model) finishRunning() {
	m.stopRunning()
	m.cancel = nil
	m.running = false
	m.statusbar.SetRunning(false)
}

// Async commands

func (m *Model) startExecute(query string) tea.Cmd {
	if m.conn == nil {
		return func() tea.Msg {
			return executedMsg{err: errors.New("no connection selected")}
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.statusbar.SetRunning(true)

	service := m.service
	conn := m.conn.Descriptor()
	return func() tea.Msg {
		outcomes, err := service.ExecuteBuffer(ctx, conn, query)
		return executedMsg{outcomes: outcomes, err: err}
	}
}

func (m *Model) startRetry(previous app.Outcome) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.statusbar.SetRunning(true)

	service := m.service
	return func() tea.Msg {
		return retriedMsg{outcome: service.Retry(ctx, previous)}
	}
}

func (m Model) saveConfigCmd() tea.Cmd {
	cfg := *m.cfg
	cfg.Connections = append([]config.Connection(nil), m.cfg.Connections...)
	dir := m.opts.ConfigDir
	return func() tea.Msg {
		return connectionSavedMsg{err: config.Save(&cfg, dir)}
	}
}

// View renders the entire application.
func (m Model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	switch m.mode {
	case ModeSelectConnection:
		return m.viewSelectConnection()
	case ModeConnect:
		return m.viewConnect()
	default:
		return m.viewMain()
	}
}

func (m Model) viewSelectConnection() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(1, 0)
	subtitleStyle := lipgloss.NewStyle().Foreground(theme.ColorMuted)

	title := titleStyle.Render("kqlpad")
	subtitle := subtitleStyle.Render("Queries in, tables out.")

	sectionTitle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Render("Saved Connections")

	var items []string
	for i, conn := range m.cfg.Connections {
		label := fmt.Sprintf("  %s (%s)", conn.Name, conn.DisplayString())
		if i == m.connCursor {
			label = lipgloss.NewStyle().
				Foreground(theme.ColorHighlight).
				Bold(true).
				Render("> " + conn.Name + " (" + conn.DisplayString() + ")")
		}
		items = append(items, label)
	}

	// "New connection" option
	newLabel := "  [New Connection]"
	if m.connCursor == len(m.cfg.Connections) {
		newLabel = lipgloss.NewStyle().
			Foreground(theme.ColorHighlight).
			Bold(true).
			Render("> [New Connection]")
	}
	items = append(items, "", newLabel)

	hints := theme.StyleMuted.Render("  ↑/↓: Navigate  Enter: Select  n: New  q: Quit")

	parts := []string{"", title, subtitle, "", sectionTitle}
	parts = append(parts, items...)
	if m.err != nil {
		parts = append(parts, "\n"+theme.StyleError.Render("  Error: "+m.err.Error()))
	}
	parts = append(parts, "", hints)

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
}

func (m Model) viewConnect() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(1, 0)

	title := titleStyle.Render("kqlpad")
	prompt := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Render("Enter a cluster URL, postgres DSN or duckdb path:")

	var errMsg string
	if m.err != nil {
		errMsg = "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
	}

	backHint := ""
	if len(m.cfg.Connections) > 0 {
		backHint = "Esc: Back │ "
	}
	hint := theme.StyleMuted.Render("  " + backHint + "Enter: Connect │ Ctrl+C: Quit")

	content := lipgloss.JoinVertical(lipgloss.Left,
		"",
		title,
		"",
		prompt,
		"  "+m.connInput.View(),
		errMsg,
		"",
		hint,
	)

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
}

func (m Model) viewMain() string {
	statusHeight := 1
	availHeight := m.height - statusHeight - 2

	editorHeight := availHeight * 40 / 100
	if editorHeight < 5 {
		editorHeight = 5
	}
	resultsHeight := availHeight - editorHeight - 2

	editorBorder := theme.StyleBorder
	if m.activePane == PaneEditor {
		editorBorder = theme.StyleActiveBorder
	}
	editorView := editorBorder.
		Width(m.width - 2).
		Height(editorHeight).
		Render(m.editor.View())

	resultsBorder := theme.StyleBorder
	if m.activePane == PaneResults {
		resultsBorder = theme.StyleActiveBorder
	}
	resultsView := resultsBorder.
		Width(m.width - 2).
		Height(resultsHeight).
		Render(m.results.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		editorView,
		resultsView,
		m.statusbar.View(),
	)
}

type binding struct {
	keys string
	desc string
}

var helpSections = []struct {
	title    string
	bindings []binding
}{
	{"Global", []binding{
		{"q / Ctrl+C", "Quit application"},
		{"Tab", "Switch between panes"},
		{"Ctrl+O", "Choose another connection"},
		{"Esc", "Cancel the running query"},
		{"?", "Toggle this help"},
	}},
	{"Editor", []binding{
		{"Ctrl+E / F5", "Run every statement in the buffer"},
		{"Ctrl+R", "Run the paragraph under the cursor"},
		{"Ctrl+K", "Clear editor"},
		{"Tab", "Complete the operator after |"},
	}},
	{"Results", []binding{
		{"[ / ]", "Previous/next statement result"},
		{"↑/k  ↓/j", "Move row cursor"},
		{"←/h  →/l", "Move column cursor"},
		{"PgUp/PgDn", "Page up/down"},
		{"d / r", "Error details / retry failed statement"},
		{"y / Y", "Copy cell / row as JSON"},
		{"c / J / P", "Export CSV / JSON / Parquet"},
	}},
}

func (m Model) viewHelp() string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(theme.ColorHighlight).
		Bold(true)
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Width(16)

	lines := []string{theme.StyleTitle.Render("kqlpad - Keyboard Shortcuts")}
	for _, section := range helpSections {
		lines = append(lines, "", sectionStyle.Render(section.title))
		for _, b := range section.bindings {
			lines = append(lines, "  "+keyStyle.Render(b.keys)+theme.StyleMuted.Render(b.desc))
		}
	}
	lines = append(lines, "", theme.StyleMuted.Render("Press any key to close"))

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, lines...),
	)
}
