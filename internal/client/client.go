// Package client talks to a running ytflow server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ytget/ytflow/internal/api"
	"github.com/ytget/ytflow/internal/model"
)

// DefaultTimeout bounds a single request
const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx reply of the server
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client is a thin JSON client of the gateway
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for the server at addr (host:port or a full URL)
func New(addr string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty server address")
	}
	if !hasScheme(addr) {
		addr = "http://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}

	return &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Health queries GET /health
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Add queues a download
func (c *Client) Add(ctx context.Context, req api.AddDownloadRequest) (*api.AddDownloadResponse, error) {
	var resp api.AddDownloadResponse
	if err := c.do(ctx, http.MethodPost, "/add-download", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Queue lists active and waiting tasks
func (c *Client) Queue(ctx context.Context) (*api.QueueResponse, error) {
	var resp api.QueueResponse
	if err := c.do(ctx, http.MethodGet, "/queue", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel stops a task
func (c *Client) Cancel(ctx context.Context, id string) (*api.MessageResponse, error) {
	var resp api.MessageResponse
	if err := c.do(ctx, http.MethodDelete, "/cancel/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Task returns a single task record
func (c *Client) Task(ctx context.Context, id string) (*model.DownloadTask, error) {
	var resp model.DownloadTask
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit finished tasks, most recent first
func (c *Client) History(ctx context.Context, limit int) ([]model.DownloadTask, error) {
	var resp api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/history?limit="+strconv.Itoa(limit), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("server is not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Detail: e.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func hasScheme(addr string) bool {
	u, err := url.Parse(addr)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}
