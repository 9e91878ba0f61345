// Package duckdb executes statements against a local DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/joacominatel/kqlpad/internal/database"
)

// Engine is a database.Client over a DuckDB database/sql handle.
type Engine struct {
	db *sql.DB
}

var _ database.Client = (*Engine)(nil)

// Open opens the DuckDB database at path. An empty path is an in-memory
// database.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return NewEngine(db), nil
}

// NewEngine wraps an existing handle.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Execute runs text and returns a fully materialized response. Trailing
// semicolons are stripped. databaseID, when set, selects the schema.
func (e *Engine) Execute(ctx context.Context, databaseID, text string, opts database.RequestOptions) (any, error) {
	sqlText := stripTrailingSemicolons(text)
	if sqlText == "" {
		return nil, fmt.Errorf("sql is required")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if schema := strings.TrimSpace(databaseID); schema != "" {
		if _, err := conn.ExecContext(ctx, "SET schema = "+quoteString(schema)); err != nil {
			return nil, fmt.Errorf("select schema %q: %w", schema, err)
		}
	}

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	descriptors := make([]database.ColumnDescriptor, len(columns))
	for i, name := range columns {
		descriptors[i] = database.ColumnDescriptor{ColumnName: name}
	}
	if types, err := rows.ColumnTypes(); err == nil && len(types) == len(columns) {
		for i, t := range types {
			descriptors[i].Type = t.DatabaseTypeName()
		}
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &database.Response{PrimaryResults: []*database.ResultTable{{
		Name:    "PrimaryResult",
		Columns: descriptors,
		Rows:    resultRows,
	}}}, nil
}

// Close closes the database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
