package database

import (
	"strconv"
	"time"
)

// TabularResult is the normalized result of one statement execution.
// Every row has exactly len(Columns) cells.
type TabularResult struct {
	Columns            []string
	Rows               [][]string
	RowCount           int
	HasData            bool
	Elapsed            time.Duration
	ExecutionTimeLabel string
	Error              string
}

// NewTabularResult builds a result whose counters and time label are derived
// from rows and elapsed.
func NewTabularResult(columns []string, rows [][]string, elapsed time.Duration) TabularResult {
	return TabularResult{
		Columns:            columns,
		Rows:               rows,
		RowCount:           len(rows),
		HasData:            len(rows) > 0,
		Elapsed:            elapsed,
		ExecutionTimeLabel: ExecutionTimeLabel(elapsed),
	}
}

// ExecutionTimeLabel renders milliseconds below one second ("123ms") and
// seconds with two decimals otherwise ("1.23s").
func ExecutionTimeLabel(elapsed time.Duration) string {
	ms := elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms < 1000 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	return strconv.FormatFloat(float64(ms)/1000, 'f', 2, 64) + "s"
}

// ColumnDescriptor describes one column as reported by a client. ColumnName
// is preferred over Name when both are set.
type ColumnDescriptor struct {
	ColumnName string
	Name       string
	Type       string
}

// RowIterator streams rows of a result table. pgx.Rows satisfies it.
type RowIterator interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}

// ResultTable is one table of a typed client response. Clients populate Rows,
// Iterator, or both.
type ResultTable struct {
	Name     string
	Columns  []ColumnDescriptor
	Rows     [][]any
	Iterator RowIterator
}

// Response is the typed response shape produced by in-process clients.
type Response struct {
	PrimaryResults []*ResultTable
}
