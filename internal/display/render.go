// Package display renders statement results and classified errors as text.
package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/failure"
	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

const (
	maxCellWidth = 40
	// EmptyMessage is shown for a successful statement without rows.
	EmptyMessage = "Query completed successfully but returned no rows"
)

// Stats renders the "N row(s) | label" summary of a result.
func Stats(result database.TabularResult) string {
	return fmt.Sprintf("%d row(s) | %s", result.RowCount, result.ExecutionTimeLabel)
}

// Truncate shortens s to width display cells, ending in an ellipsis.
func Truncate(s string, width int) string {
	if width < 1 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// Table renders the columns and rows of result as a bordered table.
func Table(result database.TabularResult) string {
	headers := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		headers[i] = Truncate(col, maxCellWidth)
	}
	rows := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = Truncate(flatten(cell), maxCellWidth)
		}
		rows[i] = cells
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	nullStyle := cellStyle.Foreground(theme.ColorMuted)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && rows[row][col] == "null" {
				return nullStyle
			}
			return cellStyle
		})
	return t.Render()
}

// Error renders a classified error with its category, code and sub-errors.
func Error(e failure.ClassifiedError) string {
	style := theme.StyleError
	if e.Severity == failure.SeverityWarning {
		style = theme.StyleWarning
	}

	var b strings.Builder
	b.WriteString(style.Bold(true).Render(fmt.Sprintf("%s: %s", e.Severity, e.Summary)))
	b.WriteString("\n")
	meta := "Category: " + string(e.Category)
	if e.Code != "" {
		meta += " | Code: " + e.Code
	}
	b.WriteString(theme.StyleMuted.Render(meta))
	for _, sub := range e.SubErrors {
		b.WriteString("\n  - ")
		b.WriteString(sub.Message)
		if sub.Code != "" {
			b.WriteString(theme.StyleMuted.Render(" (" + sub.Code + ")"))
		}
	}
	return b.String()
}

// Details renders the full error text shown on request.
func Details(e failure.ClassifiedError) string {
	details := strings.TrimSpace(e.Details)
	if details == "" {
		details = e.Summary
	}
	return Error(e) + "\n\n" + details
}

// Diagnostic renders the rows of a result that could not be processed. Cells
// are printed in full since they carry the failure text.
func Diagnostic(result database.TabularResult) string {
	lines := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		lines = append(lines, strings.Join(row, " "))
	}
	if len(lines) == 0 {
		lines = append(lines, result.Error)
	}
	return theme.StyleError.Bold(true).Render(strings.Join(lines, "\n"))
}

// Header renders the connection line above one statement's output.
func Header(index int, stmt string, conn database.ConnectionDescriptor, name string) string {
	target := conn.Name
	if conn.Database != "" {
		target += "/" + conn.Database
	}
	title := fmt.Sprintf("[%d] %s", index+1, target)
	if name != "" {
		title += " as " + name
	}
	return theme.StyleTitle.Render(title) + "\n" + theme.StyleMuted.Render(Truncate(flatten(stmt), 100))
}

// flatten keeps multi-line values on one table line.
func flatten(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
}
