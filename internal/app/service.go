package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joacominatel/kqlpad/internal/database"
	"github.com/joacominatel/kqlpad/internal/failure"
	"github.com/joacominatel/kqlpad/internal/observability"
	"github.com/joacominatel/kqlpad/internal/response"
	"github.com/joacominatel/kqlpad/internal/statement"
)

const (
	requestIDPrefix = "KQLPAD.execute;"
	defaultTimeout  = 5 * time.Minute
)

// ErrNoStatements is returned when a buffer holds nothing executable.
var ErrNoStatements = errors.New("no executable statement found")

// Options configures the request identity attached to every statement.
type Options struct {
	Logger      *slog.Logger
	Application string
	User        string
	Version     string
	Timeout     time.Duration
}

// Outcome is the result of one statement. Exactly one of Result and Err is
// set.
type Outcome struct {
	Index      int
	Statement  statement.Statement
	Connection database.ConnectionDescriptor
	RequestID  string
	Result     *database.TabularResult
	Err        *failure.ClassifiedError
	// Cause is the raw failure behind Err.
	Cause error
}

// Failed reports whether the statement failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Empty reports a successful statement that returned no rows.
func (o Outcome) Empty() bool {
	return o.Err == nil && o.Result != nil && !o.Result.HasData && o.Result.Error == ""
}

// Unreadable reports a statement that ran but whose response could not be
// normalized. Result then holds the diagnostic row.
func (o Outcome) Unreadable() bool {
	return o.Err == nil && o.Result != nil && o.Result.Error != ""
}

// Service coordinates statement execution between the hosts and the
// execution clients.
type Service struct {
	factory database.ClientFactory
	opts    Options

	mu      sync.Mutex
	clients map[string]database.Client

	newRequestID func() string
	now          func() time.Time
}

// NewService creates a new application service.
func NewService(factory database.ClientFactory, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Service{
		factory: factory,
		opts:    opts,
		clients: make(map[string]database.Client),
		newRequestID: func() string {
			return requestIDPrefix + uuid.NewString()
		},
		now: time.Now,
	}
}

// ExecuteBuffer splits text and runs its statements one at a time, in order.
// A failed statement does not stop the ones after it. Only cancellation of
// ctx ends the run early, returning the outcomes collected so far.
func (s *Service) ExecuteBuffer(ctx context.Context, conn database.ConnectionDescriptor, text string) ([]Outcome, error) {
	statements := statement.Split(text)
	if len(statements) == 0 {
		return nil, ErrNoStatements
	}

	outcomes := make([]Outcome, 0, len(statements))
	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, s.ExecuteStatement(ctx, conn, i, stmt))
	}
	return outcomes, nil
}

// ExecuteStatement runs one statement with a fresh request id.
func (s *Service) ExecuteStatement(ctx context.Context, conn database.ConnectionDescriptor, index int, stmt statement.Statement) Outcome {
	outcome := Outcome{
		Index:      index,
		Statement:  stmt,
		Connection: conn,
		RequestID:  s.newRequestID(),
	}

	start := s.now()
	client, err := s.client(ctx, conn)
	if err != nil {
		return s.fail(outcome, &ErrConnection{Connection: conn.Name, Cause: err}, s.now().Sub(start))
	}

	resp, err := client.Execute(ctx, conn.Database, stmt.Text, s.requestOptions(outcome.RequestID))
	if err != nil {
		return s.fail(outcome, &ErrQuery{Index: index, Query: stmt.Text, Cause: err}, s.now().Sub(start))
	}

	// Streaming clients deliver rows during normalization, so it is timed too.
	result := response.Normalize(resp, 0)
	elapsed := s.now().Sub(start)
	result.Elapsed = elapsed
	result.ExecutionTimeLabel = database.ExecutionTimeLabel(elapsed)
	outcome.Result = &result

	if result.Error != "" {
		observability.ObserveStatement(conn.Kind, observability.OutcomeFailure, string(failure.CategoryGeneral), elapsed)
		s.opts.Logger.Warn("statement_result_unreadable",
			slog.String("request_id", outcome.RequestID),
			slog.String("connection", conn.Name),
			slog.String("database", conn.Database),
			slog.Int("statement_index", index),
			slog.String("error", result.Error),
			slog.Duration("duration", elapsed),
		)
		return outcome
	}

	status := observability.OutcomeSuccess
	if !result.HasData {
		status = observability.OutcomeEmpty
	}
	observability.ObserveStatement(conn.Kind, status, "", elapsed)
	s.opts.Logger.Info("statement_executed",
		slog.String("request_id", outcome.RequestID),
		slog.String("connection", conn.Name),
		slog.String("database", conn.Database),
		slog.Int("statement_index", index),
		slog.Int("rows", result.RowCount),
		slog.Duration("duration", elapsed),
	)
	return outcome
}

// Retry re-runs the statement of a previous outcome with a new request id.
func (s *Service) Retry(ctx context.Context, previous Outcome) Outcome {
	return s.ExecuteStatement(ctx, previous.Connection, previous.Index, previous.Statement)
}

// Close closes every client opened by the service.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for key, client := range s.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.clients, key)
	}
	return errors.Join(errs...)
}

// client returns the cached client for conn, opening it on first use.
func (s *Service) client(ctx context.Context, conn database.ConnectionDescriptor) (database.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conn.Key()
	if client, ok := s.clients[key]; ok {
		return client, nil
	}
	client, err := s.factory.Open(ctx, conn)
	if err != nil {
		return nil, err
	}
	s.clients[key] = client
	return client, nil
}

func (s *Service) requestOptions(requestID string) database.RequestOptions {
	tags := map[string]string{database.TagApplication: s.opts.Application}
	if s.opts.User != "" {
		tags[database.TagUser] = s.opts.User
	}
	if s.opts.Version != "" {
		tags[database.TagVersion] = s.opts.Version
	}
	return database.RequestOptions{
		RequestID: requestID,
		Timeout:   s.opts.Timeout,
		Tags:      tags,
	}
}

func (s *Service) fail(outcome Outcome, cause error, elapsed time.Duration) Outcome {
	// Classify the client's own error so structured payloads are kept.
	classified := failure.Classify(errors.Unwrap(cause))
	var connErr *ErrConnection
	if errors.As(cause, &connErr) && classified.Category == failure.CategoryGeneral {
		classified.Category = failure.CategoryConnection
	}
	outcome.Err = &classified
	outcome.Cause = cause

	observability.ObserveStatement(outcome.Connection.Kind, observability.OutcomeFailure, string(classified.Category), elapsed)
	s.opts.Logger.Warn("statement_failed",
		slog.String("request_id", outcome.RequestID),
		slog.String("connection", outcome.Connection.Name),
		slog.String("database", outcome.Connection.Database),
		slog.Int("statement_index", outcome.Index),
		slog.String("category", string(classified.Category)),
		slog.String("error", cause.Error()),
		slog.Duration("duration", elapsed),
	)
	return outcome
}
