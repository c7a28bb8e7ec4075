package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ytget/ytflow/internal/model"
)

func newRequest(n int) model.DownloadRequest {
	return model.DownloadRequest{
		URL:   fmt.Sprintf("https://www.youtube.com/watch?v=video%d", n),
		Kind:  model.KindVideo,
		Title: fmt.Sprintf("Video %d", n),
	}
}

func TestRegistry_EnqueueAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry(5)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id, err := r.Enqueue(newRequest(i))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		if seen[id] {
			t.Fatalf("Duplicate id %s", id)
		}
		seen[id] = true
	}

	if r.QueueDepth() != 100 {
		t.Errorf("Expected queue depth 100, got %d", r.QueueDepth())
	}
}

func TestRegistry_EnqueueInvalid(t *testing.T) {
	r := NewRegistry(5)

	_, err := r.Enqueue(model.DownloadRequest{URL: "  "})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest, got %v", err)
	}
	if r.QueueDepth() != 0 {
		t.Errorf("Expected empty queue, got %d", r.QueueDepth())
	}
}

func TestRegistry_NextIsFIFO(t *testing.T) {
	r := NewRegistry(5)
	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := r.Enqueue(newRequest(i))
		ids = append(ids, id)
	}

	ctx := context.Background()
	for i, want := range ids {
		task, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if task.ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, task.ID)
		}
		if task.Status != model.TaskStatusDownloading {
			t.Errorf("Expected status %s, got %s", model.TaskStatusDownloading, task.Status)
		}
	}

	if r.ActiveCount() != 3 {
		t.Errorf("Expected 3 active, got %d", r.ActiveCount())
	}

	active := r.ListActive()
	for i, task := range active {
		if task.ID != ids[i] {
			t.Errorf("ListActive[%d]: expected %s, got %s", i, ids[i], task.ID)
		}
	}
}

func TestRegistry_NextBlocksUntilEnqueue(t *testing.T) {
	r := NewRegistry(5)

	got := make(chan string, 1)
	go func() {
		task, err := r.Next(context.Background())
		if err == nil {
			got <- task.ID
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned on an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	id, _ := r.Enqueue(newRequest(1))

	select {
	case v := <-got:
		if v != id {
			t.Errorf("Expected %s, got %s", id, v)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up after Enqueue")
	}
}

func TestRegistry_NextHonoursContext(t *testing.T) {
	r := NewRegistry(5)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestRegistry_CancelQueued(t *testing.T) {
	r := NewRegistry(5)
	first, _ := r.Enqueue(newRequest(1))
	second, _ := r.Enqueue(newRequest(2))

	if err := r.CancelQueued(first); err != nil {
		t.Fatalf("CancelQueued failed: %v", err)
	}

	if r.QueueDepth() != 1 {
		t.Errorf("Expected queue depth 1, got %d", r.QueueDepth())
	}

	status, err := r.Status(first)
	if err != nil || status != model.TaskStatusCancelled {
		t.Errorf("Expected Cancelled, got %s (%v)", status, err)
	}

	if err := r.CancelQueued(first); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("Expected ErrAlreadyTerminal, got %v", err)
	}
	if err := r.CancelQueued("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	task, _ := r.Next(context.Background())
	if task.ID != second {
		t.Errorf("Expected %s to be next, got %s", second, task.ID)
	}
	if err := r.CancelQueued(second); !errors.Is(err, ErrNotActive) {
		t.Errorf("Expected ErrNotActive for an active task, got %v", err)
	}
}

func TestRegistry_FinishIsIdempotent(t *testing.T) {
	r := NewRegistry(5)
	id, _ := r.Enqueue(newRequest(1))
	r.Next(context.Background())

	if !r.Finish(id, model.TaskStatusCompleted, nil, []string{"/tmp/a.mp4"}) {
		t.Fatal("First Finish should succeed")
	}
	if r.Finish(id, model.TaskStatusFailed, errors.New("late"), nil) {
		t.Error("Second Finish should be ignored")
	}

	task, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if task.Status != model.TaskStatusCompleted {
		t.Errorf("Expected Completed, got %s", task.Status)
	}
	if task.Progress != 100 {
		t.Errorf("Expected progress 100, got %v", task.Progress)
	}
	if len(task.OutputPaths) != 1 || task.OutputPaths[0] != "/tmp/a.mp4" {
		t.Errorf("Unexpected outputs: %v", task.OutputPaths)
	}
	if r.ActiveCount() != 0 {
		t.Errorf("Expected no active tasks, got %d", r.ActiveCount())
	}
}

func TestRegistry_FailureKeepsError(t *testing.T) {
	r := NewRegistry(5)
	id, _ := r.Enqueue(newRequest(1))
	r.Next(context.Background())
	r.Finish(id, model.TaskStatusFailed, errors.New("video unavailable"), nil)

	task, _ := r.Lookup(id)
	if task.Error != "video unavailable" {
		t.Errorf("Expected error detail, got %q", task.Error)
	}

	stats := r.Stats()
	if stats.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", stats.Failed)
	}
}

func TestRegistry_HistoryIsBounded(t *testing.T) {
	r := NewRegistry(3)
	var ids []string
	for i := 0; i < 5; i++ {
		id, _ := r.Enqueue(newRequest(i))
		ids = append(ids, id)
	}
	for range ids {
		task, _ := r.Next(context.Background())
		r.Finish(task.ID, model.TaskStatusCompleted, nil, nil)
	}

	history := r.ListCompleted(0)
	if len(history) != 3 {
		t.Fatalf("Expected 3 tasks in history, got %d", len(history))
	}
	if history[0].ID != ids[4] || history[2].ID != ids[2] {
		t.Errorf("Expected most recent first, got %s..%s", history[0].ID, history[2].ID)
	}

	if _, err := r.Lookup(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected evicted task to be unknown, got %v", err)
	}

	if got := r.ListCompleted(2); len(got) != 2 {
		t.Errorf("Expected 2 tasks with limit, got %d", len(got))
	}
	if r.Stats().Completed != 5 {
		t.Errorf("Expected completed counter 5, got %d", r.Stats().Completed)
	}
}

func TestRegistry_ProgressOnlyForActive(t *testing.T) {
	r := NewRegistry(5)
	id, _ := r.Enqueue(newRequest(1))

	r.Progress(id, model.Progress{Phase: model.TaskStatusDownloading, Percent: 50})
	task, _ := r.Lookup(id)
	if task.Progress != 0 {
		t.Errorf("Queued task should ignore progress, got %v", task.Progress)
	}

	r.Next(context.Background())
	r.Progress(id, model.Progress{Phase: model.TaskStatusDownloading, Percent: 50})
	task, _ = r.Lookup(id)
	if task.Progress != 50 {
		t.Errorf("Expected progress 50, got %v", task.Progress)
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := NewRegistry(5)
	id, _ := r.Enqueue(newRequest(1))

	task, _ := r.Lookup(id)
	task.Status = model.TaskStatusFailed

	again, _ := r.Lookup(id)
	if again.Status != model.TaskStatusQueued {
		t.Errorf("Registry state changed through a copy: %s", again.Status)
	}
}
