package display

import (
	"fmt"
	"io"

	"github.com/joacominatel/kqlpad/internal/app"
	"github.com/joacominatel/kqlpad/internal/tui/theme"
)

// Printer writes outcomes of a batch run to a terminal or file.
type Printer struct {
	w io.Writer
	// Details prints the full error text under each failure.
	Details bool
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes every outcome in order, separated by blank lines.
func (p *Printer) Print(outcomes []app.Outcome) error {
	for i, o := range outcomes {
		if i > 0 {
			if _, err := fmt.Fprintln(p.w); err != nil {
				return err
			}
		}
		if err := p.PrintOutcome(o); err != nil {
			return err
		}
	}
	return nil
}

// PrintOutcome writes one statement's header followed by its table, the
// empty-result notice, or the error block. An unreadable response prints its
// diagnostic.
func (p *Printer) PrintOutcome(o app.Outcome) error {
	out := Header(o.Index, o.Statement.Text, o.Connection, o.Statement.Name) + "\n"
	switch {
	case o.Failed():
		if p.Details {
			out += Details(*o.Err)
		} else {
			out += Error(*o.Err)
		}
	case o.Unreadable():
		out += Diagnostic(*o.Result)
	case o.Empty():
		out += theme.StyleSuccess.Render(EmptyMessage) + "\n" + theme.StyleMuted.Render(Stats(*o.Result))
	default:
		out += Table(*o.Result) + "\n" + theme.StyleMuted.Render(Stats(*o.Result))
	}
	_, err := fmt.Fprintln(p.w, out)
	return err
}

// Summary returns the one-line tally of a run.
func Summary(outcomes []app.Outcome) string {
	var failed, empty int
	for _, o := range outcomes {
		switch {
		case o.Failed(), o.Unreadable():
			failed++
		case o.Empty():
			empty++
		}
	}
	return fmt.Sprintf("%d statement(s): %d succeeded, %d empty, %d failed",
		len(outcomes), len(outcomes)-failed-empty, empty, failed)
}
