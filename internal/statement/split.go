// Package statement splits an editor buffer into independently executable
// statements.
package statement

import (
	"regexp"
	"strings"
)

const (
	terminator    = ';'
	commentMarker = "//"
)

// namedSuffix matches a trailing "| as Name" on a statement.
var namedSuffix = regexp.MustCompile(`(?is)^(.*?)\|\s*as\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*;?\s*$`)

// Statement is one executable unit of query text. Name is empty when the
// statement carries no "| as Name" suffix.
type Statement struct {
	Text string
	Name string
}

// Named reports whether the statement carries a result name.
func (s Statement) Named() bool {
	return s.Name != ""
}

// Split turns a buffer into its ordered statements. A buffer without any
// executable content yields an empty slice.
func Split(buffer string) []Statement {
	cleaned := Clean(buffer)
	if cleaned == "" {
		return nil
	}

	var statements []Statement
	for _, segment := range splitOutsideQuotes(cleaned) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		stmt := assemble(segment)
		if stmt.Text == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

// Clean drops blank and comment lines, strips trailing whitespace per line,
// and trims the joined result. Indentation is kept.
func Clean(buffer string) string {
	lines := strings.Split(buffer, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r\f\v")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, commentMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// splitOutsideQuotes cuts text at every terminator found outside single or
// double quoted regions. Escape sequences are not recognized.
func splitOutsideQuotes(text string) []string {
	var (
		segments      []string
		current       strings.Builder
		inSingleQuote bool
		inDoubleQuote bool
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '\'' && !inDoubleQuote:
			inSingleQuote = !inSingleQuote
		case ch == '"' && !inSingleQuote:
			inDoubleQuote = !inDoubleQuote
		case ch == terminator && !inSingleQuote && !inDoubleQuote:
			segments = append(segments, current.String())
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}
	segments = append(segments, current.String())
	return segments
}

func assemble(segment string) Statement {
	if m := namedSuffix.FindStringSubmatch(segment); m != nil {
		return Statement{
			Text: strings.TrimSpace(m[1]),
			Name: m[2],
		}
	}
	text := strings.TrimSuffix(segment, string(terminator))
	return Statement{Text: strings.TrimSpace(text)}
}
