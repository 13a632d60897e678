// Package analytics is the HTTP transport to the analytics engine. It sends
// query documents and returns the engine's answer verbatim: no
// interpretation, no reshaping, no business rules.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nlq/internal/translator"
)

// Config holds connection settings for the analytics engine.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
	// MaxRows is the execution guardrail: queries asking for more rows are
	// rejected client-side before they reach the engine.
	MaxRows int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:4000/cubejs-api/v1",
		Timeout: 30 * time.Second,
		MaxRows: 10000,
	}
}

// Response is the engine's answer plus transport metadata. Data is returned
// exactly as the engine produced it.
type Response struct {
	Data       []map[string]any `json:"data"`
	Annotation json.RawMessage  `json:"annotation,omitempty"`
	Query      json.RawMessage  `json:"query,omitempty"`
	SlowQuery  bool             `json:"slowQuery,omitempty"`
	RequestID  string           `json:"request_id"`
}

type loadEnvelope struct {
	Query translator.Query `json:"query"`
}

// Client executes query documents against the engine's REST API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. A nil logger disables logging.
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// Load executes a query document. Transient failures (connect, timeout) get
// one retry; anything the engine actually answered is final.
func (c *Client) Load(ctx context.Context, query translator.Query) (*Response, error) {
	if query.Limit > c.config.MaxRows {
		return nil, &TooLargeError{Limit: query.Limit, MaxRows: c.config.MaxRows}
	}
	if query.Limit <= 0 {
		query.Limit = c.config.MaxRows
	}

	requestID := uuid.NewString()[:8]

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := c.execute(ctx, query, requestID)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var connErr *ConnectionError
		var timeoutErr *TimeoutError
		if !errors.As(err, &connErr) && !errors.As(err, &timeoutErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("transient analytics failure",
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) execute(ctx context.Context, query translator.Query, requestID string) (*Response, error) {
	body, err := json.Marshal(loadEnvelope{Query: query})
	if err != nil {
		return nil, fmt.Errorf("analytics: marshal query: %w", err)
	}

	url := c.config.BaseURL + "/load"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analytics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", c.config.APIToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, &TimeoutError{Timeout: c.config.Timeout.String(), Err: err}
		}
		return nil, &ConnectionError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{URL: url, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &ServiceUnavailableError{}
	case resp.StatusCode >= 400:
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("analytics: invalid JSON response: %w", err)
	}
	parsed.RequestID = requestID

	c.logger.Debug("analytics query executed",
		zap.String("request_id", requestID),
		zap.Int("rows", len(parsed.Data)),
		zap.Bool("slow_query", parsed.SlowQuery),
		zap.Duration("elapsed", time.Since(start)))
	return &parsed, nil
}

// isClientTimeout reports whether a transport error was the http.Client
// timeout rather than a refused connection.
func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
