package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestUse(t *testing.T) {
	t.Cleanup(func() { _ = Use("default") })

	if err := Use("mono"); err != nil {
		t.Fatalf("Use(mono) error = %v", err)
	}
	if ColorError != lipgloss.Color("") {
		t.Fatalf("ColorError = %q, want empty", ColorError)
	}

	if err := Use(""); err != nil {
		t.Fatalf("Use(\"\") error = %v", err)
	}
	if ColorError != lipgloss.Color("196") {
		t.Fatalf("ColorError = %q, want 196", ColorError)
	}

	if err := Use("neon"); err == nil {
		t.Fatal("Use(neon) error = nil")
	}
}
