package statusbar

import (
	"strings"
	"testing"
)

func TestView(t *testing.T) {
	tests := []struct {
		name       string
		connection string
		running    bool
		message    string
		want       []string
	}{
		{name: "no connection", want: []string{"no connection", "Ctrl+E: Run"}},
		{name: "connected", connection: "help", want: []string{"help", "?: Help"}},
		{name: "running", connection: "help", running: true, want: []string{"help (running, esc: cancel)"}},
		{name: "message", connection: "help", message: "Exported 2 rows", want: []string{"Exported 2 rows"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := New()
			m.SetWidth(120)
			m.SetConnection(tc.connection)
			m.SetRunning(tc.running)
			m.SetMessage(tc.message)

			view := m.View()
			for _, want := range tc.want {
				if !strings.Contains(view, want) {
					t.Fatalf("View() = %q, want it to contain %q", view, want)
				}
			}
		})
	}
}
