package dashboard

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"

	"github.com/ytget/ytflow/internal/logging"
	"github.com/ytget/ytflow/internal/model"
	"github.com/ytget/ytflow/internal/queue"
)

// Reporter defaults
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultRecent   = 8
)

// Source provides the snapshots shown by the reporter
type Source interface {
	Stats() queue.Stats
	ListActive() []model.DownloadTask
	ListCompleted(limit int) []model.DownloadTask
}

// Options configures the reporter
type Options struct {
	Interval  time.Duration
	Recent    int
	Limit     int
	OutputDir string
	Engine    func() string // current yt-dlp version, may be empty
	Out       io.Writer
}

// Reporter periodically redraws the queue state in place
type Reporter struct {
	src  Source
	opts Options

	writer *uilive.Writer
	last   string

	log *log.Entry
}

// NewReporter creates a reporter writing to opts.Out, or stdout when unset
func NewReporter(src Source, opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Recent <= 0 {
		opts.Recent = DefaultRecent
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	w := uilive.New()
	w.Out = opts.Out

	return &Reporter{
		src:    src,
		opts:   opts,
		writer: w,
		log:    logging.WithComponent("dashboard"),
	}
}

// Run redraws the view every interval until ctx is cancelled
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.draw()

	for {
		select {
		case <-ticker.C:
			r.draw()
		case <-ctx.Done():
			r.draw()
			return nil
		}
	}
}

// Snapshot collects the current state from the source
func (r *Reporter) Snapshot() Snapshot {
	s := Snapshot{
		Stats:     r.src.Stats(),
		Active:    r.src.ListActive(),
		Recent:    r.src.ListCompleted(r.opts.Recent),
		Limit:     r.opts.Limit,
		OutputDir: r.opts.OutputDir,
	}
	if r.opts.Engine != nil {
		s.EngineVersion = r.opts.Engine()
	}
	return s
}

// draw writes a new frame when the visible content changed
func (r *Reporter) draw() {
	s := r.Snapshot()

	sig := Signature(s)
	if sig == r.last {
		return
	}
	r.last = sig

	s.UpdatedAt = time.Now()

	if _, err := io.WriteString(r.writer, Render(s)); err != nil {
		r.log.Warnf("Failed to render dashboard: %s", err)
		return
	}
	if err := r.writer.Flush(); err != nil {
		r.log.Warnf("Failed to render dashboard: %s", err)
	}
}
