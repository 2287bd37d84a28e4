// Package api provides a client for the GateKeeper decision log endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
)

// DefaultLogsPath is appended to the base URL when no path is configured.
const DefaultLogsPath = "/logs"

// maxBodyBytes bounds how much of an upstream response is read.
var maxBodyBytes int64 = 32 << 20

var (
	// ErrTransport is returned when the request could not be completed.
	ErrTransport = errors.New("upstream unreachable")
	// ErrUpstreamStatus is returned for non-2xx responses.
	ErrUpstreamStatus = errors.New("upstream returned error status")
	// ErrMalformedBody is returned when the body is not valid JSON.
	ErrMalformedBody = errors.New("upstream returned malformed JSON")
	// ErrNotArray is returned when the body is valid JSON but not an array.
	ErrNotArray = errors.New("upstream payload is not an array")
	// ErrBodyTooLarge is returned when the body exceeds the read limit.
	ErrBodyTooLarge = errors.New("upstream response too large")
)

// IsPayloadError reports whether err means the upstream answered with JSON
// of the wrong shape, as opposed to a connectivity problem.
func IsPayloadError(err error) bool {
	return errors.Is(err, ErrNotArray)
}

// Client is an HTTP client for the GateKeeper logs endpoint.
type Client struct {
	baseURL    string
	logsPath   string
	httpClient *http.Client
	token      string
}

// NewClient creates a new client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		logsPath: DefaultLogsPath,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithToken returns a new client with the specified bearer token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		logsPath:   c.logsPath,
		httpClient: c.httpClient,
		token:      token,
	}
}

// WithLogsPath returns a new client that fetches from path instead of /logs.
func (c *Client) WithLogsPath(path string) *Client {
	if path == "" {
		path = DefaultLogsPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Client{
		baseURL:    c.baseURL,
		logsPath:   path,
		httpClient: c.httpClient,
		token:      c.token,
	}
}

// WithTimeout returns a new client whose requests give up after timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	return &Client{
		baseURL:    c.baseURL,
		logsPath:   c.logsPath,
		httpClient: &http.Client{Timeout: timeout, Transport: c.httpClient.Transport},
		token:      c.token,
	}
}

// URL returns the full logs endpoint URL.
func (c *Client) URL() string {
	return c.baseURL + c.logsPath
}

// FetchLogs performs one GET against the logs endpoint and decodes the
// returned array.
func (c *Client) FetchLogs(ctx context.Context) ([]models.LogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	if int64(len(body)) > maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w (%d): %s", ErrUpstreamStatus, resp.StatusCode, snippet(body))
	}

	return decodeLogs(body)
}

// decodeLogs validates body and decodes it into entries.
func decodeLogs(body []byte) ([]models.LogEntry, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBody, snippet(body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, snippet(body))
	}

	entries := []models.LogEntry{}
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return entries, nil
}

// snippet shortens a response body for error messages.
func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
