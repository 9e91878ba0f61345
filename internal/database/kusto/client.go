// Package kusto executes statements against a Kusto-style REST v2 query
// endpoint.
package kusto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joacominatel/kqlpad/internal/database"
)

const queryPath = "/v2/rest/query"

// Config holds what the client needs to reach one cluster.
type Config struct {
	Endpoint      string
	Token         string
	ClientVersion string
	HTTPClient    *http.Client
}

// Client is a database.Client for one cluster endpoint.
type Client struct {
	endpoint   string
	token      string
	version    string
	httpClient *http.Client
}

var _ database.Client = (*Client)(nil)

// NewClient validates cfg and returns a client for its endpoint.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	version := cfg.ClientVersion
	if version == "" {
		version = "dev"
	}
	return &Client{
		endpoint:   endpoint,
		token:      strings.TrimSpace(cfg.Token),
		version:    version,
		httpClient: httpClient,
	}, nil
}

type queryRequest struct {
	DB         string            `json:"db"`
	CSL        string            `json:"csl"`
	Properties requestProperties `json:"properties"`
}

type requestProperties struct {
	Options map[string]any `json:"Options"`
}

// Execute posts text to the query endpoint and returns the decoded frame
// list. Numbers are kept as json.Number.
func (c *Client) Execute(ctx context.Context, databaseID, text string, opts database.RequestOptions) (any, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	options := map[string]any{}
	if opts.Timeout > 0 {
		options["servertimeout"] = formatTimespan(opts.Timeout)
	}
	if app := opts.Tag(database.TagApplication); app != "" {
		options["request_app_name"] = app
	}
	if user := opts.Tag(database.TagUser); user != "" {
		options["request_user"] = user
	}

	body, err := json.Marshal(queryRequest{
		DB:         databaseID,
		CSL:        text,
		Properties: requestProperties{Options: options},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+queryPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ms-client-version", "kqlpad.go:"+c.version)
	if opts.RequestID != "" {
		req.Header.Set("x-ms-client-request-id", opts.RequestID)
	}
	if app := opts.Tag(database.TagApplication); app != "" {
		req.Header.Set("x-ms-app", app)
	}
	if user := opts.Tag(database.TagUser); user != "" {
		req.Header.Set("x-ms-user", user)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send query request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseServiceError(resp.StatusCode, raw)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var frames any
	if err := dec.Decode(&frames); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	if serviceErr := completionError(frames); serviceErr != nil {
		serviceErr.StatusCode = resp.StatusCode
		return nil, serviceErr
	}
	return frames, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// completionError reports the errors carried by a DataSetCompletion frame
// with HasErrors set.
func completionError(frames any) *ServiceError {
	list, ok := frames.([]any)
	if !ok {
		return nil
	}
	for _, frame := range list {
		m, ok := frame.(map[string]any)
		if !ok || m["FrameType"] != "DataSetCompletion" {
			continue
		}
		if hasErrors, _ := m["HasErrors"].(bool); !hasErrors {
			return nil
		}

		serviceErr := &ServiceError{}
		raw, err := json.Marshal(m["OneApiErrors"])
		if err == nil {
			var wrapped []struct {
				Error OneAPIError `json:"error"`
			}
			if json.Unmarshal(raw, &wrapped) == nil {
				for _, entry := range wrapped {
					serviceErr.Errors = append(serviceErr.Errors, entry.Error)
				}
			}
		}
		if len(serviceErr.Errors) > 0 {
			first := serviceErr.Errors[0]
			serviceErr.Code = first.Code
			serviceErr.Message = first.Message
			serviceErr.Details = first.Details
			serviceErr.Permanent = first.Permanent
		} else {
			serviceErr.Message = "Query completed with errors"
		}
		return serviceErr
	}
	return nil
}

// formatTimespan renders d as a [d.]hh:mm:ss timespan.
func formatTimespan(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if days > 0 {
		return fmt.Sprintf("%d.%02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
