package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/veridian-dash/veridian/api/common"
)

var Logger = logger.GetLogger("api")

const defaultTimeout = 5 * time.Second

// APIError is returned for every response with success=false.
type APIError struct {
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("APIError (status %d): %s", e.StatusCode, e.Msg)
}

// StatusOf returns the HTTP status of an APIError, 0 for any other error.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client is a typed client of the dashboard API. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	retryCount int
}

// New creates a client for the server at config.Endpoint ("localhost:8080" or a full url).
func New(config common.ClientConfig) (*Client, error) {
	endpoint := config.Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	base, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", config.Endpoint, err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryCount: max(config.RetryCount, 1),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// invoke sends one request and decodes the data of the response envelope into out.
// GET requests are retried on transport errors, other methods are sent once.
func invoke[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var zero T

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
	}

	u := c.base.JoinPath(path)
	u.RawQuery = query.Encode()

	attempts := 1
	if method == http.MethodGet {
		attempts = c.retryCount
	}

	var resp *http.Response
	var err error
	for i := 0; i < attempts; i++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
		if err != nil {
			return zero, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err = c.http.Do(req)
		if err == nil || ctx.Err() != nil {
			break
		}
		Logger.Debugf("%s %s failed (attempt %d/%d): %v", method, u.Path, i+1, attempts, err)
	}
	if err != nil {
		return zero, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("read response: %w", err)
	}

	var env common.Response[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, &APIError{StatusCode: resp.StatusCode, Msg: fmt.Sprintf("unexpected response: %s", resp.Status)}
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return zero, &APIError{StatusCode: resp.StatusCode, Msg: msg}
	}
	return env.Data, nil
}

func pageQuery(cursor string, limit int) url.Values {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}
