package app

import "fmt"

// ErrConnection is returned when a client for the connection cannot be opened.
type ErrConnection struct {
	Connection string
	Cause      error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("connection %q: %v", e.Connection, e.Cause)
}

func (e *ErrConnection) Unwrap() error {
	return e.Cause
}

// ErrQuery wraps a failure reported by the client for one statement.
type ErrQuery struct {
	Index int
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index+1, e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}
