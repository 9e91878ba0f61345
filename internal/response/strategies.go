package response

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/joacominatel/kqlpad/internal/database"
)

// table is the primary result table as found by a strategy, before any
// formatting. rows is nil when the shape carries no materialized row list.
type table struct {
	columns []any
	rows    []any
	iter    database.RowIterator
}

// strategy inspects a response. It reports ok when it recognizes the shape;
// a recognized shape without a primary table returns a nil table.
type strategy struct {
	name    string
	extract func(resp any) (t *table, ok bool)
}

// strategies are tried in order and the first recognized shape wins.
var strategies = []strategy{
	{name: "typed", extract: typedResponse},
	{name: "frames", extract: frameList},
	{name: "tables", extract: tablesObject},
	{name: "primaryResults", extract: primaryResultsObject},
	{name: "statement", extract: statementObject},
	{name: "decoded", extract: decoded},
}

// objectStrategies understand responses decoded into generic JSON values.
var objectStrategies = []strategy{
	{name: "frames", extract: frameList},
	{name: "tables", extract: tablesObject},
	{name: "primaryResults", extract: primaryResultsObject},
	{name: "statement", extract: statementObject},
}

func typedResponse(resp any) (*table, bool) {
	var r *database.Response
	switch value := resp.(type) {
	case *database.Response:
		r = value
	case database.Response:
		r = &value
	default:
		return nil, false
	}
	if r == nil || len(r.PrimaryResults) == 0 || r.PrimaryResults[0] == nil {
		return nil, true
	}

	primary := r.PrimaryResults[0]
	t := &table{iter: primary.Iterator}
	if primary.Columns != nil {
		t.columns = make([]any, len(primary.Columns))
		for i, c := range primary.Columns {
			t.columns[i] = c
		}
	}
	if primary.Rows != nil {
		t.rows = make([]any, len(primary.Rows))
		for i, row := range primary.Rows {
			t.rows[i] = row
		}
	}
	return t, true
}

// frameList reads a REST v2 response: a list of frames where the primary
// result is the first DataTable frame of kind PrimaryResult.
func frameList(resp any) (*table, bool) {
	frames, ok := resp.([]any)
	if !ok || len(frames) == 0 {
		return nil, false
	}
	if _, isFrame := field(frames[0], "FrameType"); !isFrame {
		return nil, false
	}

	for _, frame := range frames {
		frameType, _ := field(frame, "FrameType")
		kind, _ := field(frame, "TableKind")
		if frameType != "DataTable" || kind != "PrimaryResult" {
			continue
		}
		return fromObject(frame, []string{"Columns"}, []string{"Rows"}), true
	}
	return nil, true
}

// tablesObject reads a REST v1 response, where the first table is primary.
func tablesObject(resp any) (*table, bool) {
	tables, ok := field(resp, "Tables")
	if !ok {
		return nil, false
	}
	return firstTable(tables, []string{"Columns"}, []string{"Rows"}), true
}

func primaryResultsObject(resp any) (*table, bool) {
	results, ok := field(resp, "primaryResults")
	if !ok {
		if results, ok = field(resp, "PrimaryResults"); !ok {
			return nil, false
		}
	}
	return firstTable(results, []string{"columns", "Columns"}, []string{"_rows", "rows", "Rows"}), true
}

// statementObject reads a SQL statement API response: columns under
// resultSetMetaData.rowType and rows under data.
func statementObject(resp any) (*table, bool) {
	meta, ok := field(resp, "resultSetMetaData")
	if !ok {
		return nil, false
	}
	rowType, _ := field(meta, "rowType")
	columns, _ := rowType.([]any)
	rows, _ := field(resp, "data")
	list, _ := rows.([]any)
	if list == nil {
		list = []any{}
	}
	return &table{columns: columns, rows: list}, true
}

// decoded brings struct-typed responses into the generic object form by a
// JSON round-trip and retries the object strategies on the result.
func decoded(resp any) (*table, bool) {
	rv := reflect.ValueOf(resp)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, false
	}

	for _, s := range objectStrategies {
		if t, ok := s.extract(generic); ok {
			return t, true
		}
	}
	return nil, false
}

func firstTable(v any, columnKeys, rowKeys []string) *table {
	list, ok := v.([]any)
	if !ok || len(list) == 0 || list[0] == nil {
		return nil
	}
	return fromObject(list[0], columnKeys, rowKeys)
}

func fromObject(obj any, columnKeys, rowKeys []string) *table {
	m, ok := obj.(map[string]any)
	if !ok {
		return nil
	}
	t := &table{}
	for _, key := range columnKeys {
		if columns, ok := m[key].([]any); ok {
			t.columns = columns
			break
		}
	}
	// The first non-empty row list wins; an empty one only records that rows
	// were present.
	for _, key := range rowKeys {
		if rows, ok := m[key].([]any); ok {
			if t.rows == nil || len(rows) > 0 {
				t.rows = rows
			}
			if len(rows) > 0 {
				break
			}
		}
	}
	return t
}

func field(v any, key string) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := m[key]
	return value, ok
}
