package statement

import (
	"fmt"
	"strconv"
	"strings"
)

// LineRange is an inclusive, 1-based range of buffer lines.
type LineRange struct {
	From int
	To   int
}

// ParseLineRange parses "N", "N:M", "N:" or ":M".
func ParseLineRange(raw string) (LineRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LineRange{}, fmt.Errorf("empty line range")
	}

	fromRaw, toRaw, hasSep := strings.Cut(raw, ":")
	if !hasSep {
		toRaw = fromRaw
	}

	var r LineRange
	var err error
	if fromRaw != "" {
		if r.From, err = strconv.Atoi(fromRaw); err != nil {
			return LineRange{}, fmt.Errorf("invalid line range %q: %w", raw, err)
		}
	}
	if toRaw != "" {
		if r.To, err = strconv.Atoi(toRaw); err != nil {
			return LineRange{}, fmt.Errorf("invalid line range %q: %w", raw, err)
		}
	}
	if r.From < 0 || r.To < 0 || (r.To > 0 && r.From > r.To) {
		return LineRange{}, fmt.Errorf("invalid line range %q", raw)
	}
	return r, nil
}

// SelectLines returns the lines of buffer covered by r. Zero bounds are open.
func SelectLines(buffer string, r LineRange) string {
	lines := strings.Split(buffer, "\n")
	from := r.From
	if from < 1 {
		from = 1
	}
	to := r.To
	if to < 1 || to > len(lines) {
		to = len(lines)
	}
	if from > to {
		return ""
	}
	return strings.Join(lines[from-1:to], "\n")
}

// Paragraph returns the range of the block of non-blank lines containing the
// 1-based line. ok is false when that line is blank or out of range.
func Paragraph(buffer string, line int) (r LineRange, ok bool) {
	lines := strings.Split(buffer, "\n")
	if line < 1 || line > len(lines) || strings.TrimSpace(lines[line-1]) == "" {
		return LineRange{}, false
	}
	from, to := line, line
	for from > 1 && strings.TrimSpace(lines[from-2]) != "" {
		from--
	}
	for to < len(lines) && strings.TrimSpace(lines[to]) != "" {
		to++
	}
	return LineRange{From: from, To: to}, true
}
