package database

import (
	"context"
	"time"
)

// Request identity tag keys understood by the clients.
const (
	TagApplication = "application"
	TagUser        = "user"
	TagVersion     = "version"
)

// RequestOptions carries per-call identity and deadline metadata. Clients are
// expected to honor Timeout themselves.
type RequestOptions struct {
	RequestID string
	Timeout   time.Duration
	Tags      map[string]string
}

// Tag returns the tag value for key, or "".
func (o RequestOptions) Tag(key string) string {
	if o.Tags == nil {
		return ""
	}
	return o.Tags[key]
}

// ConnectionDescriptor identifies the target of an execution.
type ConnectionDescriptor struct {
	Name     string
	Kind     string
	Endpoint string
	Database string
}

// Key identifies the client a descriptor resolves to. Postgres pools are
// bound to one database, so the database is part of the key.
func (d ConnectionDescriptor) Key() string {
	return d.Kind + "|" + d.Name + "|" + d.Endpoint + "|" + d.Database
}

// Client executes statements against a remote service.
// The returned response is untrusted and may take any shape.
type Client interface {
	// Execute runs one statement against databaseID.
	Execute(ctx context.Context, databaseID, text string, opts RequestOptions) (any, error)

	// Close releases the client's resources.
	Close() error
}

// ClientFactory opens clients for a connection.
type ClientFactory interface {
	Open(ctx context.Context, conn ConnectionDescriptor) (Client, error)
}
