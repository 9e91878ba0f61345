// Package snowflake executes statements through the Snowflake SQL API with
// key-pair authentication.
package snowflake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joacominatel/kqlpad/internal/database"
)

const (
	statementsPath      = "/api/v2/statements"
	defaultPollInterval = 500 * time.Millisecond
)

// Config holds config needed to initialize the client.
type Config struct {
	Account   string
	User      string
	Role      string
	Schema    string
	Warehouse string
	// BaseURL overrides https://<account>.snowflakecomputing.com.
	BaseURL      string
	PrivateKey   []byte
	PublicKey    []byte
	ExpireAfter  time.Duration
	PollInterval time.Duration
	HTTPClient   *http.Client
}

// Client is a database.Client for the Snowflake SQL API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	now        func() time.Time
}

var _ database.Client = (*Client)(nil)

// NewClient initializes the client with config and default timeout.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Account == "" || cfg.User == "" {
		return nil, fmt.Errorf("account and user are required")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("private key is required")
	}
	if _, err := parsePrivateKey(cfg.PrivateKey); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.snowflakecomputing.com", cfg.Account)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    baseURL + statementsPath,
		httpClient: httpClient,
		config:     cfg,
		now:        time.Now,
	}, nil
}

func (c *Client) authToken() (string, error) {
	return GenerateJWT(TokenConfig{
		Account:     c.config.Account,
		User:        c.config.User,
		PrivateKey:  c.config.PrivateKey,
		PublicKey:   c.config.PublicKey,
		ExpireAfter: c.config.ExpireAfter,
	}, c.now())
}

// Execute submits the statement synchronously and returns the complete
// *QueryResponse. A statement still running when the API answers 202 is
// polled until it completes or ctx is done; remaining result partitions are
// fetched and appended.
func (c *Client) Execute(ctx context.Context, databaseID, text string, opts database.RequestOptions) (any, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body := QueryRequest{
		Statement: text,
		Timeout:   int(math.Ceil(opts.Timeout.Seconds())),
		Database:  databaseID,
		Schema:    c.config.Schema,
		Warehouse: c.config.Warehouse,
		Role:      c.config.Role,
		ResultSetMetaData: &ResultSetMetaConfig{
			Format: "jsonv2",
		},
	}
	if tag := queryTag(opts); tag != "" {
		body.Parameters = map[string]string{"query_tag": tag}
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	query := url.Values{}
	query.Set("requestId", requestUUID(opts.RequestID))
	query.Set("async", "false")
	query.Set("nullable", "true")

	status, result, err := c.do(ctx, http.MethodPost, c.baseURL+"?"+query.Encode(), bodyBytes)
	if err != nil {
		return nil, err
	}
	for status == http.StatusAccepted {
		if result.StatementHandle == "" {
			return nil, fmt.Errorf("statement accepted without a handle")
		}
		select {
		case <-ctx.Done():
			c.cancel(result.StatementHandle)
			return nil, fmt.Errorf("waiting for statement %s: %w", result.StatementHandle, ctx.Err())
		case <-time.After(c.config.PollInterval):
		}
		handle := result.StatementHandle
		status, result, err = c.do(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(handle), nil)
		if err != nil {
			if ctx.Err() != nil {
				c.cancel(handle)
			}
			return nil, err
		}
	}

	for partition := 1; partition < len(result.ResultSetMetaData.PartitionInfo); partition++ {
		partitionURL := fmt.Sprintf("%s/%s?partition=%d", c.baseURL, url.PathEscape(result.StatementHandle), partition)
		_, page, err := c.do(ctx, http.MethodGet, partitionURL, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch partition %d: %w", partition, err)
		}
		result.Data = append(result.Data, page.Data...)
	}
	return result, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// do sends one authenticated request. Responses other than 200 and 202 are
// returned as *ServiceError.
func (c *Client) do(ctx context.Context, method, target string, body []byte) (int, *QueryResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	token, err := c.authToken()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to generate auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Snowflake-Authorization-Token-Type", "KEYPAIR_JWT")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kqlpad")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		serviceErr := &ServiceError{}
		if json.Unmarshal(raw, serviceErr) != nil {
			serviceErr.Message = strings.TrimSpace(string(raw))
		}
		serviceErr.StatusCode = resp.StatusCode
		return resp.StatusCode, nil, serviceErr
	}

	var result QueryResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, &result, nil
}

// cancel asks the service to stop a statement the caller gave up on.
func (c *Client) cancel(handle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, _ = c.do(ctx, http.MethodPost, c.baseURL+"/"+url.PathEscape(handle)+"/cancel", []byte("{}"))
}

// requestUUID extracts the UUID of a request id such as
// "KQLPAD.execute;<uuid>". The API only accepts UUID request ids.
func requestUUID(requestID string) string {
	candidate := requestID
	if i := strings.LastIndex(candidate, ";"); i >= 0 {
		candidate = candidate[i+1:]
	}
	if id, err := uuid.Parse(candidate); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

func queryTag(opts database.RequestOptions) string {
	var parts []string
	for _, key := range []string{database.TagApplication, database.TagUser, database.TagVersion} {
		if value := opts.Tag(key); value != "" {
			parts = append(parts, key+"="+value)
		}
	}
	if opts.RequestID != "" {
		parts = append(parts, "request_id="+opts.RequestID)
	}
	return strings.Join(parts, ";")
}
