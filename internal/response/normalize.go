// Package response turns whatever a remote client returned into a
// database.TabularResult.
package response

import (
	"errors"
	"fmt"
	"time"

	"github.com/joacominatel/kqlpad/internal/database"
)

const (
	noDataColumn  = "No Data"
	noDataMessage = "No data returned"
	errorColumn   = "Error"
	defaultColumn = "Column"
)

// Normalize converts a client response into a TabularResult. It never panics
// and never fails: an unrecognized or empty response yields a placeholder
// result and any failure while reading it yields an error result.
func Normalize(resp any, elapsed time.Duration) (result database.TabularResult) {
	defer func() {
		if r := recover(); r != nil {
			result = errorResult(fmt.Errorf("%v", r), elapsed)
		}
	}()

	if resp == nil {
		return noDataResult(elapsed)
	}
	for _, s := range strategies {
		t, ok := s.extract(resp)
		if !ok {
			continue
		}
		if t == nil {
			return noDataResult(elapsed)
		}
		result, err := t.build(elapsed)
		if err != nil {
			return errorResult(err, elapsed)
		}
		return result
	}
	return noDataResult(elapsed)
}

func (t *table) build(elapsed time.Duration) (database.TabularResult, error) {
	defer closeIterator(t.iter)

	columns := make([]string, len(t.columns))
	for i, descriptor := range t.columns {
		name, err := columnName(descriptor)
		if err != nil {
			return database.TabularResult{}, fmt.Errorf("column %d: %w", i, err)
		}
		columns[i] = name
	}

	// An empty materialized list does not hide rows offered by the iterator.
	var raw [][]any
	switch {
	case len(t.rows) > 0:
		raw = make([][]any, 0, len(t.rows))
		for _, row := range t.rows {
			raw = append(raw, rowCells(row, columns))
		}
	case t.iter != nil:
		raw = drain(t.iter)
	}

	rows := make([][]string, 0, len(raw))
	for _, cells := range raw {
		row := make([]string, len(columns))
		for i := range row {
			if i < len(cells) {
				row[i] = FormatCellValue(cells[i])
			} else {
				row[i] = nullCell
			}
		}
		rows = append(rows, row)
	}
	return database.NewTabularResult(columns, rows, elapsed), nil
}

// drain collects rows until the iterator ends or fails. A failure keeps the
// rows read so far.
func drain(iter database.RowIterator) (rows [][]any) {
	defer func() {
		_ = recover()
	}()
	for iter.Next() {
		values, err := iter.Values()
		if err != nil {
			return rows
		}
		rows = append(rows, values)
	}
	return rows
}

func closeIterator(iter database.RowIterator) {
	if iter == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	iter.Close()
}

var errMalformedColumn = errors.New("malformed column descriptor")

func columnName(descriptor any) (string, error) {
	switch d := descriptor.(type) {
	case string:
		return orDefault(d), nil
	case database.ColumnDescriptor:
		return orDefault(d.ColumnName, d.Name), nil
	case *database.ColumnDescriptor:
		if d == nil {
			return "", errMalformedColumn
		}
		return orDefault(d.ColumnName, d.Name), nil
	case map[string]any:
		return orDefault(
			stringField(d, "columnName"),
			stringField(d, "ColumnName"),
			stringField(d, "name"),
			stringField(d, "Name"),
		), nil
	default:
		return "", fmt.Errorf("%w of type %T", errMalformedColumn, descriptor)
	}
}

// rowCells reads one raw row. Object rows are read by column name; any other
// non-list value is a single cell.
func rowCells(row any, columns []string) []any {
	switch r := row.(type) {
	case []any:
		return r
	case []string:
		cells := make([]any, len(r))
		for i, v := range r {
			cells[i] = v
		}
		return cells
	case map[string]any:
		cells := make([]any, len(columns))
		for i, name := range columns {
			cells[i] = r[name]
		}
		return cells
	default:
		return []any{row}
	}
}

func orDefault(names ...string) string {
	for _, name := range names {
		if name != "" {
			return name
		}
	}
	return defaultColumn
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func noDataResult(elapsed time.Duration) database.TabularResult {
	return database.TabularResult{
		Columns:            []string{noDataColumn},
		Rows:               [][]string{{noDataMessage}},
		Elapsed:            elapsed,
		ExecutionTimeLabel: database.ExecutionTimeLabel(elapsed),
	}
}

func errorResult(err error, elapsed time.Duration) database.TabularResult {
	return database.TabularResult{
		Columns:            []string{errorColumn},
		Rows:               [][]string{{"Failed to process query results: " + err.Error()}},
		Elapsed:            elapsed,
		ExecutionTimeLabel: database.ExecutionTimeLabel(elapsed),
		Error:              err.Error(),
	}
}
