// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/sgd-harvest/pkg/types"
)

// ErrNotFound is matched by errors for HTTP 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError reports a non-2xx response that survived retries.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Response is a fully read GET response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// ErrBodyTooLarge is returned for a response body over MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// MaxBodyBytes caps a single response body. ZIP bundles of large volumes
// are the biggest payloads the repository serves.
var MaxBodyBytes int64 = 512 << 20

// Client issues GET requests with the configured user agent, per-request
// timeout, and retry policy.
type Client struct {
	HTTP       *http.Client
	UserAgent  string
	MaxRetries int
	Timeout    time.Duration
}

// NewClient builds a Client from cfg.
func NewClient(cfg types.HTTPConfig) *Client {
	return &Client{
		HTTP:       &http.Client{},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.Timeout,
	}
}

// Get fetches url and returns the body of a 2xx response. Non-2xx
// responses produce a *StatusError; a 404 additionally matches ErrNotFound.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(body)) > MaxBodyBytes {
		return nil, fmt.Errorf("reading %s: %w: over %d bytes", url, ErrBodyTooLarge, MaxBodyBytes)
	}
	return &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
