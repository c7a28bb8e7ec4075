package download

import (
	"context"
	"errors"

	"github.com/ytget/ytflow/internal/model"
	"github.com/ytget/ytflow/internal/transcode"
)

var (
	// ErrExtractionFailed marks a failure reported by the download engine
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrCancelledByUser marks a job stopped by a cancel request
	ErrCancelledByUser = errors.New("cancelled by user")
)

// Extractor downloads the media of a task into workDir and reports progress
// on events. Implementations must return promptly once ctx is cancelled.
type Extractor interface {
	Extract(ctx context.Context, task model.DownloadTask, workDir string, events chan<- model.Progress) error
}

// PostProcessor converts downloaded files into the requested format
type PostProcessor interface {
	Needed(req transcode.Request) bool
	Process(ctx context.Context, req transcode.Request, onProgress transcode.ProgressFunc) (string, error)
}

// sendProgress delivers p unless the receiver is gone or ctx is done
func sendProgress(ctx context.Context, events chan<- model.Progress, p model.Progress) {
	select {
	case events <- p:
	case <-ctx.Done():
	}
}
