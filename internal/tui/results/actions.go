package results

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/export"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

func (m Model) getCellValue() string {
	result := m.result()
	if result == nil || m.cursorY < 0 || m.cursorY >= len(result.Rows) {
		return ""
	}
	row := result.Rows[m.cursorY]
	if m.cursorX < 0 || m.cursorX >= len(row) {
		return ""
	}
	return row[m.cursorX]
}

func notify(message string) tea.Cmd {
	return func() tea.Msg {
		return StatusNotifyMsg{Message: message}
	}
}

// --- Copy ---

func (m Model) copyCellCmd() tea.Cmd {
	val := m.getCellValue()
	if val == "" {
		return notify("Nothing to copy")
	}
	if err := writeClipboard(val); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied: " + truncateStatus(val, 40))
}

func (m Model) copyRowCmd() tea.Cmd {
	result := m.result()
	if result == nil || m.cursorY < 0 || m.cursorY >= len(result.Rows) {
		return notify("No row to copy")
	}
	row := database.NewTabularResult(result.Columns, [][]string{result.Rows[m.cursorY]}, 0)
	var b bytes.Buffer
	if err := export.WriteJSON(&b, row); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	if err := writeClipboard(b.String()); err != nil {
		return notify("Copy failed: " + err.Error())
	}
	return notify("Copied row as JSON")
}

// --- Export ---

func (m Model) exportCmd(format string) tea.Cmd {
	result := m.result()
	if result == nil {
		return notify("Nothing to export")
	}
	snapshot := *result
	dir := m.exportDir
	return func() tea.Msg {
		path := filepath.Join(dir, export.Filename("kqlpad", format, time.Now()))
		if err := export.WriteFile(path, format, snapshot); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", snapshot.RowCount, path)}
	}
}

// truncateStatus cuts s to maxLen runes.
func truncateStatus(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
