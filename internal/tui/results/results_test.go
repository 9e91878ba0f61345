package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joacominatel/kqlpad/internal/app"
	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/failure"
	"github.com/joacominatel/kqlpad/internal/statement"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleOutcomes() []app.Outcome {
	rows := database.NewTabularResult([]string{"State", "Count"}, [][]string{{"TEXAS", "12"}, {"KANSAS", "null"}}, 10*time.Millisecond)
	return []app.Outcome{
		{Index: 0, Statement: statement.Statement{Text: "StormEvents | take 5"}, Err: &failure.ClassifiedError{
			Summary:  "Query execution timed out",
			Details:  "context deadline exceeded after 5m",
			Category: failure.CategoryTimeout,
			Severity: failure.SeverityWarning,
		}},
		{Index: 1, Statement: statement.Statement{Text: "StormEvents | count"}, Result: &rows},
	}
}

func newFocused(t *testing.T) Model {
	t.Helper()
	m := New(t.TempDir())
	m.SetSize(80, 20)
	m.SetFocused(true)
	m.SetOutcomes(sampleOutcomes())
	return m
}

func TestFailedOutcomeOffersDetailsAndRetry(t *testing.T) {
	m := newFocused(t)

	view := m.View()
	if !strings.Contains(view, "d: details  r: retry") || !strings.Contains(view, "1/2") {
		t.Fatalf("View() = %s", view)
	}
	if strings.Contains(view, "context deadline exceeded after 5m") {
		t.Fatalf("details shown before d: %s", view)
	}

	m, _ = m.Update(key("d"))
	if !strings.Contains(m.View(), "context deadline exceeded after 5m") {
		t.Fatalf("details missing after d: %s", m.View())
	}

	m, cmd := m.Update(key("r"))
	if cmd == nil {
		t.Fatal("r returned no command")
	}
	retry, ok := cmd().(RetryMsg)
	if !ok || retry.Outcome.Index != 0 {
		t.Fatalf("cmd() = %#v", retry)
	}
	if !strings.Contains(m.View(), "Executing query...") {
		t.Fatalf("View() = %s", m.View())
	}
}

func TestUnreadableOutcomeShowsDiagnostic(t *testing.T) {
	bad := database.TabularResult{
		Columns: []string{"Error"},
		Rows:    [][]string{{"Failed to process query results: column 0: malformed column descriptor"}},
		Error:   "column 0: malformed column descriptor",
	}
	m := New(t.TempDir())
	m.SetSize(120, 20)
	m.SetOutcomes([]app.Outcome{{Index: 0, Statement: statement.Statement{Text: "T | take 1"}, Result: &bad}})

	view := m.View()
	if !strings.Contains(view, "Failed to process query results: column 0: malformed column descriptor") {
		t.Fatalf("View() = %s", view)
	}
	if strings.Contains(view, "completed successfully") {
		t.Fatalf("View() reports success for an unreadable result: %s", view)
	}
}

func TestCycleOutcomes(t *testing.T) {
	m := newFocused(t)
	m, _ = m.Update(key("]"))
	if o, _ := m.Current(); o.Index != 1 {
		t.Fatalf("Current().Index = %d", o.Index)
	}
	view := m.View()
	if !strings.Contains(view, "TEXAS") || !strings.Contains(view, "2 row(s) | 10ms") {
		t.Fatalf("View() = %s", view)
	}

	m, _ = m.Update(key("]"))
	if o, _ := m.Current(); o.Index != 1 {
		t.Fatalf("Current().Index = %d after last", o.Index)
	}
	m, _ = m.Update(key("["))
	if o, _ := m.Current(); o.Index != 0 {
		t.Fatalf("Current().Index = %d", o.Index)
	}
}

func TestReplaceOutcome(t *testing.T) {
	m := newFocused(t)
	fixed := database.NewTabularResult([]string{"x"}, nil, time.Millisecond)
	m.ReplaceOutcome(app.Outcome{Index: 0, Statement: statement.Statement{Text: "StormEvents | take 5"}, Result: &fixed})

	o, _ := m.Current()
	if o.Failed() || !o.Empty() {
		t.Fatalf("Current() = %+v", o)
	}
	if !strings.Contains(m.View(), "Query completed successfully but returned no rows") {
		t.Fatalf("View() = %s", m.View())
	}
}

func TestCopyCell(t *testing.T) {
	var copied string
	original := writeClipboard
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}
	t.Cleanup(func() { writeClipboard = original })

	m := newFocused(t)
	m, _ = m.Update(key("]"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})

	_, cmd := m.Update(key("y"))
	msg := cmd().(StatusNotifyMsg)
	if copied != "null" || !strings.Contains(msg.Message, "Copied") {
		t.Fatalf("copied = %q, msg = %q", copied, msg.Message)
	}

	_, cmd = m.Update(key("Y"))
	cmd()
	if copied != "[\n  {\"State\": \"KANSAS\", \"Count\": null}\n]\n" {
		t.Fatalf("copied row = %q", copied)
	}
}

func TestExportWritesFile(t *testing.T) {
	m := newFocused(t)
	m, _ = m.Update(key("]"))

	_, cmd := m.Update(key("c"))
	msg := cmd().(StatusNotifyMsg)
	if !strings.HasPrefix(msg.Message, "Exported 2 rows to ") {
		t.Fatalf("msg = %q", msg.Message)
	}
	path := strings.TrimPrefix(msg.Message, "Exported 2 rows to ")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "State,Count\n") || filepath.Ext(path) != ".csv" {
		t.Fatalf("export = %q (%s)", data, path)
	}

	// A failed outcome has nothing to export.
	m, _ = m.Update(key("["))
	_, cmd = m.Update(key("J"))
	if got := cmd().(StatusNotifyMsg).Message; got != "Nothing to export" {
		t.Fatalf("msg = %q", got)
	}
}

func TestTruncateStatus(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghijkl", 10, "abcdefg..."},
		{"ÅÅÅÅÅÅÅÅÅÅÅÅ", 10, "ÅÅÅÅÅÅÅ..."},
		{"東京都東京都東京都", 8, "東京都東京..."},
	}

	for _, tt := range tests {
		got := truncateStatus(tt.in, tt.max)
		if got != tt.want {
			t.Fatalf("truncateStatus(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncateStatus(%q, %d) = %q, not valid UTF-8", tt.in, tt.max, got)
		}
	}
}
