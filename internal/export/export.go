// Package export writes a TabularResult as CSV, JSON or Parquet.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/joacominatel/kqlpad/internal/database"
)

// Format names accepted by Write.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// nullCell is how normalized results spell a missing value.
const nullCell = "null"

// Extension returns the file extension for format.
func Extension(format string) string {
	return "." + format
}

// Write encodes result to w in the named format.
func Write(w io.Writer, format string, result database.TabularResult) error {
	switch strings.ToLower(format) {
	case FormatCSV:
		return WriteCSV(w, result)
	case FormatJSON:
		return WriteJSON(w, result)
	case FormatParquet:
		return WriteParquet(w, result)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile creates path and writes result into it.
func WriteFile(path, format string, result database.TabularResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := Write(f, format, result); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Filename returns a timestamped file name for an export taken at now.
func Filename(prefix, format string, now time.Time) string {
	return fmt.Sprintf("%s_export_%s%s", prefix, now.Format("20060102_150405"), Extension(format))
}

// WriteCSV writes a header row followed by every data row.
func WriteCSV(w io.Writer, result database.TabularResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range result.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an array with one object per row. Keys keep column order
// and "null" cells become JSON null.
func WriteJSON(w io.Writer, result database.TabularResult) error {
	var b bytes.Buffer
	b.WriteString("[")
	for ri, row := range result.Rows {
		if ri > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  ")
		if err := writeObject(&b, result.Columns, row); err != nil {
			return err
		}
	}
	if len(result.Rows) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	_, err := w.Write(b.Bytes())
	return err
}

func writeObject(b *bytes.Buffer, columns, row []string) error {
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, err := json.Marshal(col)
		if err != nil {
			return fmt.Errorf("encode column %q: %w", col, err)
		}
		b.Write(key)
		b.WriteString(": ")
		if i >= len(row) || row[i] == nullCell {
			b.WriteString("null")
			continue
		}
		val, err := json.Marshal(row[i])
		if err != nil {
			return fmt.Errorf("encode cell: %w", err)
		}
		b.Write(val)
	}
	b.WriteString("}")
	return nil
}

// parquetCell is one cell of the long-format Parquet export. Results carry no
// reliable schema, so cells are stored as rows of (row, column, value).
type parquetCell struct {
	Row      int64  `parquet:"row"`
	Position int32  `parquet:"position"`
	Column   string `parquet:"column"`
	Value    string `parquet:"value,optional"`
	Null     bool   `parquet:"is_null"`
}

// WriteParquet writes result in long format.
func WriteParquet(w io.Writer, result database.TabularResult) error {
	cells := make([]parquetCell, 0, len(result.Rows)*len(result.Columns))
	for ri, row := range result.Rows {
		for ci, col := range result.Columns {
			cell := parquetCell{Row: int64(ri), Position: int32(ci), Column: col}
			if ci < len(row) && row[ci] != nullCell {
				cell.Value = row[ci]
			} else {
				cell.Null = true
			}
			cells = append(cells, cell)
		}
	}

	writer := parquet.NewGenericWriter[parquetCell](w)
	if len(cells) > 0 {
		if _, err := writer.Write(cells); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
