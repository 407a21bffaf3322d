// Package authclient talks to the upstream authentication API.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shindakun/loginportal/internal/metrics"
	"github.com/shindakun/loginportal/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes caps how much of an upstream body is decoded
const maxResponseBytes = 1 << 20

// Client posts credentials to the login endpoint. It never retries.
type Client struct {
	httpClient *http.Client
	loginURL   string
}

// New creates a client for loginURL on a pooled, traced transport.
// A zero timeout leaves the call bounded only by the caller's context.
func New(loginURL string, timeout time.Duration) *Client {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Transport = otelhttp.NewTransport(httpClient.Transport)
	httpClient.Timeout = timeout
	return NewWithHTTPClient(loginURL, httpClient)
}

// NewWithHTTPClient creates a client that uses the given http.Client
func NewWithHTTPClient(loginURL string, httpClient *http.Client) *Client {
	return &Client{
		httpClient: httpClient,
		loginURL:   loginURL,
	}
}

// LoginURL returns the endpoint the client posts to
func (c *Client) LoginURL() string {
	return c.loginURL
}

// Login performs a single POST of creds. The response body is decoded as JSON
// whatever the status; failures come back as *Error.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()
	metrics.UpstreamLatency.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, StatusCode: resp.StatusCode, Err: err}
	}

	// Unmarshal rejects anything after the first JSON value
	var data models.LoginResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &Error{Kind: KindDecode, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode, Message: data.Message}
	}

	return &data, nil
}
