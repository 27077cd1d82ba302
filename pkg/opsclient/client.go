// Package opsclient provides an HTTP client for the StreamGuard ops API.
package opsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the ops API (e.g., "http://localhost:8710")
	ServerURL string

	// Token is an operator JWT, required when the server runs with a secret key
	Token string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Health represents the ops API health payload
type Health struct {
	Healthy       bool   `json:"healthy"`
	Topic         string `json:"topic"`
	Partition     int32  `json:"partition"`
	HaltedThreads int    `json:"halted_threads"`
}

// Checkpoint represents the reported consumer checkpoint
type Checkpoint struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// ResetResult represents the outcome of a halted-thread reset
type ResetResult struct {
	ThreadID string `json:"thread_id"`
	Halted   bool   `json:"halted"`
}

type haltedResponse struct {
	Threads []string `json:"threads"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client provides HTTP access to a running consumer's ops API
type Client struct {
	config     Config
	httpClient *http.Client
	baseURL    *url.URL
}

// NewClient creates a new ops API client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// SetToken replaces the operator token.
func (c *Client) SetToken(token string) {
	c.config.Token = token
}

// GetHealth returns the consumer's health status
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}
	return &resp, nil
}

// GetHaltedThreads returns the identifiers of all halted threads
func (c *Client) GetHaltedThreads(ctx context.Context) ([]string, error) {
	var resp haltedResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/halted", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list halted threads: %w", err)
	}
	return resp.Threads, nil
}

// ResetHalted unblocks one halted thread. With full set, the thread's
// tracking state is cleared as well and its next message re-baselines.
func (c *Client) ResetHalted(ctx context.Context, threadID string, full bool) (*ResetResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("threadID is required")
	}

	path := fmt.Sprintf("/api/v1/halted/%s/reset", url.PathEscape(threadID))
	if full {
		path += "?full=true"
	}

	var resp ResetResult
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to reset halted thread: %w", err)
	}
	return &resp, nil
}

// GetCheckpoint returns the consumer's current checkpoint
func (c *Client) GetCheckpoint(ctx context.Context) (*Checkpoint, error) {
	var resp Checkpoint
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/checkpoint", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &resp, nil
}

// doRequest performs an HTTP request against the ops API
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	u, err := c.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("invalid request path: %w", err)
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if respBody != nil {
		if err := json.Unmarshal(data, respBody); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
