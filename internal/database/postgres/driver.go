// Package postgres executes statements against PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joacominatel/kqlpad/internal/database"
)

const (
	maxApplicationName = 63
	resetTimeout       = 5 * time.Second
)

// sessionConn is the part of *pgxpool.Conn a request uses.
type sessionConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Release()
}

type connPool interface {
	Acquire(ctx context.Context) (sessionConn, error)
	Close()
}

type pgxPool struct {
	*pgxpool.Pool
}

func (p pgxPool) Acquire(ctx context.Context) (sessionConn, error) {
	return p.Pool.Acquire(ctx)
}

// Config describes the pool to open.
type Config struct {
	DSN string
	// Database overrides the database named in DSN.
	Database string
	MaxConns int32
}

// Driver is a database.Client backed by a PostgreSQL pool.
type Driver struct {
	pool    connPool
	dbName  string
	typeMap *pgtype.Map
}

var _ database.Client = (*Driver)(nil)

// Connect establishes a connection pool to PostgreSQL.
func Connect(ctx context.Context, cfg Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.Database != "" {
		poolCfg.ConnConfig.Database = cfg.Database
	}

	poolCfg.MaxConns = 5
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return newDriver(pgxPool{pool}, poolCfg.ConnConfig.Database), nil
}

func newDriver(pool connPool, dbName string) *Driver {
	return &Driver{pool: pool, dbName: dbName, typeMap: pgtype.NewMap()}
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}

// Execute runs text on a dedicated connection. The request timeout becomes
// the session statement_timeout and the application tag its
// application_name. The first row is read before returning so that errors
// raised by the server surface here; the rest streams through the returned
// table's iterator, which releases the connection when closed.
func (d *Driver) Execute(ctx context.Context, databaseID, text string, opts database.RequestOptions) (any, error) {
	if databaseID != "" && d.dbName != "" && databaseID != d.dbName {
		return nil, fmt.Errorf("execute: connected to database %q, not %q", d.dbName, databaseID)
	}
	if d.pool == nil {
		return nil, fmt.Errorf("not connected")
	}

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	release := releaseFunc(conn)

	timeout := strconv.FormatInt(opts.Timeout.Milliseconds(), 10)
	if _, err := conn.Exec(ctx, querySessionSettings, timeout, applicationName(opts)); err != nil {
		release()
		return nil, fmt.Errorf("apply session settings: %w", err)
	}

	rows, err := conn.Query(ctx, requestComment(opts.RequestID)+text)
	if err != nil {
		release()
		return nil, fmt.Errorf("execute: %w", err)
	}

	it := &rowIterator{rows: rows, release: release}
	if rows.Next() {
		values, err := rows.Values()
		if err != nil {
			it.Close()
			return nil, fmt.Errorf("read row: %w", err)
		}
		it.first = normalizeValues(values)
		it.hasFirst = true
	} else if err := rows.Err(); err != nil {
		it.Close()
		return nil, fmt.Errorf("execute: %w", err)
	}

	return &database.Response{PrimaryResults: []*database.ResultTable{{
		Name:     "PrimaryResult",
		Columns:  d.columns(rows.FieldDescriptions()),
		Iterator: it,
	}}}, nil
}

func (d *Driver) columns(fields []pgconn.FieldDescription) []database.ColumnDescriptor {
	columns := make([]database.ColumnDescriptor, len(fields))
	for i, f := range fields {
		columns[i] = database.ColumnDescriptor{ColumnName: f.Name}
		if t, ok := d.typeMap.TypeForOID(f.DataTypeOID); ok {
			columns[i].Type = t.Name
		}
	}
	return columns
}

// releaseFunc resets the session and returns the connection to the pool.
// It is safe to call more than once.
func releaseFunc(conn sessionConn) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
			defer cancel()
			_, _ = conn.Exec(ctx, queryResetSession)
			conn.Release()
		})
	}
}

// rowIterator replays the primed first row, then streams the rest.
type rowIterator struct {
	rows     pgx.Rows
	release  func()
	first    []any
	hasFirst bool
	onFirst  bool
	closed   bool
}

func (it *rowIterator) Next() bool {
	if it.closed {
		return false
	}
	if it.hasFirst {
		it.hasFirst = false
		it.onFirst = true
		return true
	}
	it.onFirst = false
	return it.rows.Next()
}

func (it *rowIterator) Values() ([]any, error) {
	if it.onFirst {
		return it.first, nil
	}
	values, err := it.rows.Values()
	if err != nil {
		return nil, err
	}
	return normalizeValues(values), nil
}

func (it *rowIterator) Err() error {
	return it.rows.Err()
}

func (it *rowIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.rows.Close()
	it.release()
}

// normalizeValues renders driver values that have no readable default form.
func normalizeValues(values []any) []any {
	for i, v := range values {
		switch typed := v.(type) {
		case [16]byte:
			values[i] = uuid.UUID(typed).String()
		case []byte:
			values[i] = string(typed)
		}
	}
	return values
}

func applicationName(opts database.RequestOptions) string {
	name := opts.Tag(database.TagApplication)
	if name == "" {
		name = "kqlpad"
	}
	if len(name) > maxApplicationName {
		name = name[:maxApplicationName]
	}
	return name
}

func requestComment(requestID string) string {
	if requestID == "" {
		return ""
	}
	return "/* request_id: " + strings.ReplaceAll(requestID, "*/", "") + " */\n"
}
