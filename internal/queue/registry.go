package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/ytflow/internal/model"
)

// DefaultHistorySize is the number of finished tasks kept for reporting
const DefaultHistorySize = 5

// Stats is a point-in-time view of the registry counters
type Stats struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Registry holds queued, active and recently finished tasks
type Registry struct {
	mu sync.RWMutex

	queue   []*model.DownloadTask
	active  map[string]*model.DownloadTask
	order   []string // active ids by start time
	history []*model.DownloadTask
	issued  map[string]struct{}

	historySize int
	totals      Stats

	wakeup chan struct{}
}

// NewRegistry creates an empty registry that keeps historySize finished tasks
func NewRegistry(historySize int) *Registry {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Registry{
		active:      make(map[string]*model.DownloadTask),
		issued:      make(map[string]struct{}),
		historySize: historySize,
		wakeup:      make(chan struct{}, 1),
	}
}

// Enqueue validates the request and appends a new queued task to the tail.
// It never blocks on the worker pool.
func (r *Registry) Enqueue(req model.DownloadRequest) (string, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	r.mu.Lock()

	id := r.newID()
	r.queue = append(r.queue, model.NewDownloadTask(id, req))

	r.mu.Unlock()

	r.notify()

	return id, nil
}

// Next blocks until a task is queued, then removes it from the head of the
// queue and promotes it to the active set as Downloading.
func (r *Registry) Next(ctx context.Context) (model.DownloadTask, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			task := r.queue[0]
			r.queue[0] = nil
			r.queue = r.queue[1:]

			task.Status = model.TaskStatusDownloading
			task.StartedAt = time.Now()
			r.active[task.ID] = task
			r.order = append(r.order, task.ID)

			snapshot := task.Clone()
			more := len(r.queue) > 0
			r.mu.Unlock()

			if more {
				r.notify()
			}
			return snapshot, nil
		}
		r.mu.Unlock()

		select {
		case <-r.wakeup:
		case <-ctx.Done():
			return model.DownloadTask{}, ctx.Err()
		}
	}
}

// Update applies fn to an active task under the registry lock
func (r *Registry) Update(id string, fn func(*model.DownloadTask)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.active[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotActive, id)
	}
	fn(task)

	return nil
}

// Progress merges a progress observation into an active task
func (r *Registry) Progress(id string, p model.Progress) {
	_ = r.Update(id, func(t *model.DownloadTask) {
		t.ApplyProgress(p)
	})
}

// Finish moves an active task into the history with a terminal status.
// It returns false if the task was not active, so only the first call wins.
func (r *Registry) Finish(id string, status model.TaskStatus, err error, outputs []string) bool {
	if !status.IsFinished() {
		panic(fmt.Sprintf("queue: finish with non-terminal status %s", status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.active[id]
	if !ok {
		return false
	}

	delete(r.active, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	task.Status = status
	task.FinishedAt = time.Now()
	task.Speed = ""
	task.ETASec = -1
	if status == model.TaskStatusFailed && err != nil {
		task.Error = err.Error()
	}
	if status == model.TaskStatusCompleted {
		task.Progress = 100
		task.OutputPaths = append([]string(nil), outputs...)
	}

	r.remember(task)

	return true
}

// CancelQueued removes a queued task from the FIFO and records it as cancelled
func (r *Registry) CancelQueued(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, task := range r.queue {
		if task.ID != id {
			continue
		}

		r.queue = append(r.queue[:i], r.queue[i+1:]...)

		task.Status = model.TaskStatusCancelled
		task.FinishedAt = time.Now()
		r.remember(task)

		return nil
	}

	return r.missing(id)
}

// Status returns the current status of a task
func (r *Registry) Status(id string) (model.TaskStatus, error) {
	task, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return task.Status, nil
}

// Lookup returns a copy of the task with the given id
func (r *Registry) Lookup(id string) (model.DownloadTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if task, ok := r.active[id]; ok {
		return task.Clone(), nil
	}
	for _, task := range r.queue {
		if task.ID == id {
			return task.Clone(), nil
		}
	}
	for _, task := range r.history {
		if task.ID == id {
			return task.Clone(), nil
		}
	}

	return model.DownloadTask{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// QueueDepth returns the number of queued tasks
func (r *Registry) QueueDepth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queue)
}

// ActiveCount returns the number of tasks occupying a worker slot
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Stats returns the current counters
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.totals
	s.Queued = len(r.queue)
	s.Active = len(r.active)
	return s
}

// ListQueued returns copies of all queued tasks in FIFO order
func (r *Registry) ListQueued() []model.DownloadTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.DownloadTask, 0, len(r.queue))
	for _, task := range r.queue {
		tasks = append(tasks, task.Clone())
	}
	return tasks
}

// ListActive returns copies of all active tasks ordered by start time
func (r *Registry) ListActive() []model.DownloadTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.DownloadTask, 0, len(r.order))
	for _, id := range r.order {
		tasks = append(tasks, r.active[id].Clone())
	}
	return tasks
}

// ListCompleted returns up to limit finished tasks, most recent first.
// A non-positive limit returns the whole history.
func (r *Registry) ListCompleted(limit int) []model.DownloadTask {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.history)
	if limit > 0 && limit < n {
		n = limit
	}

	tasks := make([]model.DownloadTask, 0, n)
	for i := len(r.history) - 1; i >= 0 && len(tasks) < n; i-- {
		tasks = append(tasks, r.history[i].Clone())
	}
	return tasks
}

// remember appends a finished task to the history, evicting the oldest.
// Callers must hold the write lock.
func (r *Registry) remember(task *model.DownloadTask) {
	switch task.Status {
	case model.TaskStatusCompleted:
		r.totals.Completed++
	case model.TaskStatusFailed:
		r.totals.Failed++
	case model.TaskStatusCancelled:
		r.totals.Cancelled++
	}

	r.history = append(r.history, task)
	if over := len(r.history) - r.historySize; over > 0 {
		for i := 0; i < over; i++ {
			r.history[i] = nil
		}
		r.history = r.history[over:]
	}
}

// missing reports why id is not queued. Callers must hold the lock.
func (r *Registry) missing(id string) error {
	if task, ok := r.active[id]; ok {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, id, task.Status)
	}
	for _, task := range r.history {
		if task.ID == id {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, id, task.Status)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// newID returns an id never issued before by this registry.
// Callers must hold the write lock.
func (r *Registry) newID() string {
	for {
		id := uuid.Must(uuid.NewV7()).String()
		if _, dup := r.issued[id]; !dup {
			r.issued[id] = struct{}{}
			return id
		}
	}
}

// notify wakes up a goroutine blocked in Next
func (r *Registry) notify() {
	select {
	case r.wakeup <- struct{}{}:
	default:
	}
}
