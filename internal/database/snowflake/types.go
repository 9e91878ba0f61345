package snowflake

import "fmt"

// QueryRequest is the body of a statement submission.
type QueryRequest struct {
	Statement         string               `json:"statement"`
	Timeout           int                  `json:"timeout,omitempty"`
	Database          string               `json:"database,omitempty"`
	Schema            string               `json:"schema,omitempty"`
	Warehouse         string               `json:"warehouse,omitempty"`
	Role              string               `json:"role,omitempty"`
	ResultSetMetaData *ResultSetMetaConfig `json:"resultSetMetaData,omitempty"`
	Parameters        map[string]string    `json:"parameters,omitempty"`
}

// ResultSetMetaConfig selects the result encoding.
type ResultSetMetaConfig struct {
	Format string `json:"format"`
}

// QueryResponse is a completed (or, with HTTP 202, pending) statement.
type QueryResponse struct {
	ResultSetMetaData  ResultSetMetaData `json:"resultSetMetaData"`
	Data               [][]any           `json:"data"`
	Code               string            `json:"code"`
	StatementStatusURL string            `json:"statementStatusUrl"`
	StatementHandle    string            `json:"statementHandle"`
	SQLState           string            `json:"sqlState"`
	Message            string            `json:"message"`
	CreatedOn          int64             `json:"createdOn"`
}

// ResultSetMetaData describes the returned data.
type ResultSetMetaData struct {
	NumRows       int             `json:"numRows"`
	Format        string          `json:"format"`
	RowType       []ColumnMeta    `json:"rowType"`
	PartitionInfo []PartitionMeta `json:"partitionInfo"`
}

// ColumnMeta describes one column.
type ColumnMeta struct {
	Name      string `json:"name"`
	Database  string `json:"database"`
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Nullable  bool   `json:"nullable"`
	Type      string `json:"type"`
	Scale     *int   `json:"scale"`
	Precision *int   `json:"precision"`
	Length    *int   `json:"length"`
}

// PartitionMeta describes one result partition.
type PartitionMeta struct {
	RowCount         int  `json:"rowCount"`
	UncompressedSize int  `json:"uncompressedSize"`
	CompressedSize   *int `json:"compressedSize,omitempty"`
}

// ServiceError is an error payload returned by the statements API.
type ServiceError struct {
	StatusCode      int    `json:"-"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	SQLState        string `json:"sqlState,omitempty"`
	StatementHandle string `json:"statementHandle,omitempty"`
}

func (e *ServiceError) Error() string {
	message := e.Message
	if message == "" {
		message = fmt.Sprintf("Request failed with status code %d", e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("snowflake: %s (code %s)", message, e.Code)
	}
	return "snowflake: " + message
}

// ErrorFields exposes the payload in the shape the failure classifier reads.
func (e *ServiceError) ErrorFields() map[string]any {
	message := e.Message
	if message == "" {
		message = fmt.Sprintf("Request failed with status code %d", e.StatusCode)
	}
	fields := map[string]any{
		"message":    message,
		"statusCode": e.StatusCode,
	}
	if e.Code != "" {
		fields["code"] = e.Code
	}
	if e.SQLState != "" {
		fields["details"] = fmt.Sprintf("%s (SQL state %s)", message, e.SQLState)
	}
	return fields
}
