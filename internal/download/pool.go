package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ytget/ytflow/internal/logging"
	"github.com/ytget/ytflow/internal/model"
	"github.com/ytget/ytflow/internal/platform"
	"github.com/ytget/ytflow/internal/queue"
	"github.com/ytget/ytflow/internal/transcode"
)

// Pool limits
const (
	DefaultMaxParallel = 2
	MaxParallelCeiling = 10
	DefaultCancelGrace = 10 * time.Second
	DefaultRetryDelay  = 2 * time.Second
	WorkDirName        = ".ytflow-parts"
	eventBuffer        = 32
)

// Options configures the worker pool
type Options struct {
	MaxParallel int
	OutputDir   string
	Retries     int
	RetryDelay  time.Duration
	CancelGrace time.Duration
}

type job struct {
	id        string
	cancel    context.CancelFunc
	cancelled atomic.Bool

	// started is closed once the engine is about to be invoked
	started   chan struct{}
	startOnce sync.Once

	// guards publication against a forced finish
	mu        sync.Mutex
	abandoned bool
	published []string
}

func (j *job) markStarted() {
	j.startOnce.Do(func() { close(j.started) })
}

// abandon stops the job from publishing and returns what it already published
func (j *job) abandon() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.abandoned = true
	return j.published
}

type outcome struct {
	outputs []string
	err     error
}

// Pool runs queued tasks with at most MaxParallel jobs at a time
type Pool struct {
	reg       *queue.Registry
	extractor Extractor
	post      PostProcessor
	opts      Options

	slots *semaphore.Weighted
	limit int

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu            sync.Mutex
	closed        bool
	jobs          map[string]*job
	pendingCancel map[string]struct{}
	wg            sync.WaitGroup

	log *log.Entry
}

// NewPool creates a worker pool. post may be nil when no post-processing is available.
func NewPool(reg *queue.Registry, extractor Extractor, post PostProcessor, opts Options) *Pool {
	limit := opts.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}
	limit = min(limit, MaxParallelCeiling)
	opts.MaxParallel = limit

	if opts.CancelGrace <= 0 {
		opts.CancelGrace = DefaultCancelGrace
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Pool{
		reg:           reg,
		extractor:     extractor,
		post:          post,
		opts:          opts,
		slots:         semaphore.NewWeighted(int64(limit)),
		limit:         limit,
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
		jobs:          make(map[string]*job),
		pendingCancel: make(map[string]struct{}),
		log:           logging.WithComponent("pool"),
	}
}

// Limit returns the number of slots
func (p *Pool) Limit() int {
	return p.limit
}

// Running returns the number of jobs holding a slot
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Run admits queued tasks until ctx is cancelled. Admission is FIFO: the
// scheduler takes a free slot first and then the head of the queue, and does
// not admit the next task before the engine of the previous one is invoked.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Infof("Worker pool started with %d slots", p.limit)
	defer p.log.Info("Worker pool stopped admitting tasks")

	for {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return nil
		}

		task, err := p.reg.Next(ctx)
		if err != nil {
			p.slots.Release(1)
			return nil
		}

		if !p.start(task) {
			p.reg.Finish(task.ID, model.TaskStatusCancelled, nil, nil)
			p.slots.Release(1)
		}
	}
}

// Cancel stops a task. A queued task is dropped without taking a slot, an
// active one is signalled and force-finished after the grace period.
func (p *Pool) Cancel(id string) error {
	err := p.reg.CancelQueued(id)
	if err == nil {
		p.log.WithField("task-id", id).Info("Queued task cancelled")
		return nil
	}
	if !errors.Is(err, queue.ErrNotActive) {
		return err
	}

	p.mu.Lock()
	j, ok := p.jobs[id]
	if !ok {
		status, err := p.reg.Status(id)
		if err != nil {
			p.mu.Unlock()
			return err
		}
		if status.IsFinished() {
			p.mu.Unlock()
			return fmt.Errorf("%w: %s is %s", queue.ErrAlreadyTerminal, id, status)
		}
		// promoted but not started yet
		p.pendingCancel[id] = struct{}{}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	j.cancelled.Store(true)
	j.cancel()

	p.log.WithField("task-id", id).Info("Cancellation requested for active task")

	return nil
}

// Shutdown cancels all running jobs and waits for their slots to be released.
// Tasks admitted afterwards are finished as Cancelled without starting.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.baseCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start registers a job for an admitted task, runs it and waits until its
// engine is invoked. It returns false once the pool is shut down.
func (p *Pool) start(task model.DownloadTask) bool {
	ctx, cancel := context.WithCancel(p.baseCtx)

	j := &job{
		id:      task.ID,
		cancel:  cancel,
		started: make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return false
	}
	p.jobs[task.ID] = j
	if _, ok := p.pendingCancel[task.ID]; ok {
		delete(p.pendingCancel, task.ID)
		j.cancelled.Store(true)
		cancel()
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.supervise(ctx, j, task)

	<-j.started
	return true
}

// supervise runs the job on a secondary goroutine and owns the slot
func (p *Pool) supervise(ctx context.Context, j *job, task model.DownloadTask) {
	logger := logging.WithTaskID(p.log, task.ID)

	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		delete(p.jobs, j.id)
		p.mu.Unlock()

		p.slots.Release(1)
	}()
	defer j.cancel()

	logger.Infof("Download started: %s", task.URL)

	events := make(chan model.Progress, eventBuffer)
	go p.consume(ctx, task.ID, events)

	result := make(chan outcome, 1)
	go func() {
		defer j.markStarted()
		defer func() {
			if r := recover(); r != nil {
				result <- outcome{err: fmt.Errorf("%w: panic: %v", ErrExtractionFailed, r)}
			}
		}()

		outputs, err := p.execute(ctx, j, task, events, logger)
		result <- outcome{outputs: outputs, err: err}
	}()

	var res outcome

	select {
	case res = <-result:
	case <-ctx.Done():
		select {
		case res = <-result:
		case <-time.After(p.opts.CancelGrace):
			if outputs := j.abandon(); outputs != nil {
				res = outcome{outputs: outputs}
			} else {
				logger.Warnf("Engine did not stop within %s, releasing the slot", p.opts.CancelGrace)
				res = outcome{err: ErrCancelledByUser}
			}
		}
	}

	p.finish(j, task, res, logger)
}

// finish records the terminal status of a job
func (p *Pool) finish(j *job, task model.DownloadTask, res outcome, logger *log.Entry) {
	var status model.TaskStatus

	switch {
	case res.err == nil:
		status = model.TaskStatusCompleted
		logger.Infof("Download completed: %v", res.outputs)
	case j.cancelled.Load(), errors.Is(res.err, ErrCancelledByUser):
		status = model.TaskStatusCancelled
		logger.Info("Download cancelled")
	case errors.Is(res.err, context.Canceled) && p.baseCtx.Err() != nil:
		status = model.TaskStatusCancelled
		logger.Info("Download cancelled by shutdown")
	default:
		status = model.TaskStatusFailed
		logger.Errorf("Download failed: %s", res.err)
	}

	p.reg.Finish(task.ID, status, res.err, res.outputs)
}

// consume applies progress events to the registry until the job ends
func (p *Pool) consume(ctx context.Context, id string, events <-chan model.Progress) {
	for {
		select {
		case ev := <-events:
			p.reg.Progress(id, ev)
		case <-ctx.Done():
			return
		}
	}
}

// execute downloads, post-processes and publishes the task outputs
func (p *Pool) execute(ctx context.Context, j *job, task model.DownloadTask, events chan<- model.Progress, logger *log.Entry) ([]string, error) {
	workDir := filepath.Join(p.opts.OutputDir, WorkDirName, task.ID)
	if err := platform.CreateDirectoryIfNotExists(workDir); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warnf("Failed to remove work directory: %s", err)
		}
	}()

	j.markStarted()

	if err := p.downloadWithRetry(ctx, task, workDir, events, logger); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := platform.ListMediaFiles(workDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no media files produced", ErrExtractionFailed)
	}

	files, err = p.postProcess(ctx, task, files, events, logger)
	if err != nil {
		return nil, err
	}

	return p.publish(ctx, j, files)
}

// publish moves finished files into the output directory. Nothing is moved
// once the job is cancelled or abandoned.
func (p *Pool) publish(ctx context.Context, j *job, files []string) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.abandoned {
		return nil, ErrCancelledByUser
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputs := make([]string, 0, len(files))
	for _, f := range files {
		dst, err := platform.MoveFile(f, p.opts.OutputDir)
		if err != nil {
			return outputs, fmt.Errorf("failed to move %s: %w", filepath.Base(f), err)
		}
		outputs = append(outputs, dst)
	}

	j.published = outputs
	return outputs, nil
}

// downloadWithRetry attempts the download with a bounded number of retries
func (p *Pool) downloadWithRetry(ctx context.Context, task model.DownloadTask, workDir string, events chan<- model.Progress, logger *log.Entry) error {
	var lastErr error

	for attempt := 0; attempt <= p.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.opts.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}

			logger.Infof("Retrying download, attempt %d", attempt+1)
		}

		err := p.extractor.Extract(ctx, task, workDir, events)
		if err == nil {
			return nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warnf("Download attempt %d failed: %s", attempt+1, err)
	}

	if !errors.Is(lastErr, ErrExtractionFailed) {
		lastErr = fmt.Errorf("%w: %w", ErrExtractionFailed, lastErr)
	}
	return lastErr
}

// postProcess converts files that do not match the requested format
func (p *Pool) postProcess(ctx context.Context, task model.DownloadTask, files []string, events chan<- model.Progress, logger *log.Entry) ([]string, error) {
	if p.post == nil {
		return files, nil
	}

	var pending []int
	for i, f := range files {
		if p.post.Needed(transcode.Request{Input: f, Kind: task.Kind, Format: task.Format}) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return files, nil
	}

	sendProgress(ctx, events, model.Progress{Phase: model.TaskStatusProcessing, Percent: 0, ETASec: -1})

	for n, i := range pending {
		req := transcode.Request{
			Input:   files[i],
			Kind:    task.Kind,
			Format:  task.Format,
			Quality: task.Quality,
		}

		logger.Debugf("Post-processing %s into %s", filepath.Base(req.Input), req.Format)

		out, err := p.post.Process(ctx, req, func(percent float64) {
			overall := (float64(n)*100 + percent) / float64(len(pending))
			sendProgress(ctx, events, model.Progress{Phase: model.TaskStatusProcessing, Percent: overall, ETASec: -1})
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("post-processing %s failed: %w", filepath.Base(req.Input), err)
		}

		files[i] = out
	}

	return files, nil
}
