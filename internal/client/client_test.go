package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ytget/ytflow/internal/api"
	"github.com/ytget/ytflow/internal/download"
	"github.com/ytget/ytflow/internal/model"
	"github.com/ytget/ytflow/internal/queue"
)

func newTestClient(t *testing.T) (*queue.Registry, *Client) {
	t.Helper()

	reg := queue.NewRegistry(5)
	pool := download.NewPool(reg, nil, nil, download.Options{})
	srv := httptest.NewServer(api.NewServer(reg, pool, api.Options{MaxParallel: 2}).Handler())
	t.Cleanup(srv.Close)

	c, err := New(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return reg, c
}

func TestNew(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
		wantErr  bool
	}{
		{"127.0.0.1:8000", "http://127.0.0.1:8000", false},
		{"localhost:8000", "http://localhost:8000", false},
		{"https://example.com", "https://example.com", false},
		{"", "", true},
	}

	for _, test := range tests {
		c, err := New(test.addr)
		if test.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error", test.addr)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q): unexpected error %v", test.addr, err)
			continue
		}
		if c.base.String() != test.expected {
			t.Errorf("New(%q): expected %s, got %s", test.addr, test.expected, c.base.String())
		}
	}
}

func TestClient_RoundTrip(t *testing.T) {
	reg, c := newTestClient(t)
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != api.StatusOnline || health.MaxParallel != 2 {
		t.Errorf("Unexpected health: %+v", health)
	}

	added, err := c.Add(ctx, api.AddDownloadRequest{URL: "https://youtu.be/abc", DownloadType: "audio"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	task, err := c.Task(ctx, added.TaskID)
	if err != nil {
		t.Fatalf("Task failed: %v", err)
	}
	if task.Kind != model.KindAudio || task.Status != model.TaskStatusQueued {
		t.Errorf("Unexpected task: %+v", task)
	}

	q, err := c.Queue(ctx)
	if err != nil {
		t.Fatalf("Queue failed: %v", err)
	}
	if q.QueueSize != 1 {
		t.Errorf("Expected queue size 1, got %d", q.QueueSize)
	}

	if _, err := c.Cancel(ctx, added.TaskID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	history, err := c.History(ctx, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != added.TaskID {
		t.Errorf("Unexpected history: %+v", history)
	}

	if reg.QueueDepth() != 0 {
		t.Errorf("Expected empty queue, got %d", reg.QueueDepth())
	}
}

func TestClient_Errors(t *testing.T) {
	_, c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Add(ctx, api.AddDownloadRequest{URL: "https://notallowed.example/x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail == "" {
		t.Errorf("Unexpected error: %+v", apiErr)
	}

	_, err = c.Cancel(ctx, "missing")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %v", err)
	}
}
