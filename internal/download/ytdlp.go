package download

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/ytflow/internal/model"
)

// yt-dlp invocation constants
const (
	DefaultProgressInterval = 500 * time.Millisecond
	OutputTemplate          = "%(title).180B.%(ext)s"
	AudioFormatSelector     = "bestaudio/best"
	BestVideoSelector       = "bestvideo+bestaudio/best"
	HeightVideoSelector     = "bestvideo[height<=%d]+bestaudio/best[height<=%d]"
)

// mergeFormats are the containers yt-dlp can merge streams into
var mergeFormats = map[string]bool{
	"mp4":  true,
	"mkv":  true,
	"webm": true,
	"mov":  true,
	"avi":  true,
	"flv":  true,
}

var heightPattern = regexp.MustCompile(`^(\d{3,4})p?$`)

// YTDLPOptions configures the yt-dlp backed extractor
type YTDLPOptions struct {
	Executable       string // empty means go-ytdlp resolution
	FFmpegLocation   string
	ProgressInterval time.Duration
}

// YTDLPExtractor downloads media with yt-dlp
type YTDLPExtractor struct {
	opts YTDLPOptions
}

// NewYTDLPExtractor creates a yt-dlp backed extractor
func NewYTDLPExtractor(opts YTDLPOptions) *YTDLPExtractor {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &YTDLPExtractor{opts: opts}
}

// Extract runs yt-dlp for the task and writes the media into workDir
func (e *YTDLPExtractor) Extract(ctx context.Context, task model.DownloadTask, workDir string, events chan<- model.Progress) error {
	dl := e.command(task, workDir)

	dl.ProgressFunc(e.opts.ProgressInterval, func(update ytdlp.ProgressUpdate) {
		if p, ok := progressFromUpdate(&update, task.ExpandCollection); ok {
			sendProgress(ctx, events, p)
		}
	})

	if _, err := dl.Run(ctx, task.URL); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	return nil
}

// command configures a yt-dlp invocation for the task
func (e *YTDLPExtractor) command(task model.DownloadTask, workDir string) *ytdlp.Command {
	dl := ytdlp.New().
		ForceOverwrites().
		Output(filepath.Join(workDir, OutputTemplate)).
		Format(FormatSelector(task.Kind, task.Quality))

	if e.opts.Executable != "" {
		dl.SetExecutable(e.opts.Executable)
	}
	if e.opts.FFmpegLocation != "" {
		dl.FFmpegLocation(e.opts.FFmpegLocation)
	}

	if task.ExpandCollection {
		dl.YesPlaylist()
	} else {
		dl.NoPlaylist()
	}

	if task.Kind == model.KindVideo && mergeFormats[task.Format] {
		dl.MergeOutputFormat(task.Format)
	}

	return dl
}

// FormatSelector builds the yt-dlp format expression for a kind and quality hint
func FormatSelector(kind model.MediaKind, quality string) string {
	if kind == model.KindAudio {
		return AudioFormatSelector
	}

	m := heightPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(quality)))
	if m == nil {
		return BestVideoSelector
	}

	height, err := strconv.Atoi(m[1])
	if err != nil || height <= 0 {
		return BestVideoSelector
	}

	return fmt.Sprintf(HeightVideoSelector, height, height)
}

// progressFromUpdate maps a yt-dlp progress update onto a task progress event.
// A collection task downloads many items in one run, so per-item finish and
// post-processing updates are ignored and the task stays in Downloading.
func progressFromUpdate(update *ytdlp.ProgressUpdate, collection bool) (model.Progress, bool) {
	switch update.Status {
	case ytdlp.ProgressStatusDownloading:
		p := model.Progress{
			Phase:   model.TaskStatusDownloading,
			Percent: -1,
			ETASec:  -1,
		}

		if update.TotalBytes > 0 {
			p.Percent = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
		}

		if !update.Started.IsZero() {
			if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
				p.Speed = FormatSpeed(float64(update.DownloadedBytes) / elapsed)
			}
		}

		if eta := update.ETA(); eta > 0 {
			p.ETASec = int(eta.Seconds())
		}

		return p, true
	case ytdlp.ProgressStatusFinished:
		if collection {
			return model.Progress{}, false
		}
		return model.Progress{Phase: model.TaskStatusDownloading, Percent: 100, ETASec: -1}, true
	case ytdlp.ProgressStatusPostProcessing:
		if collection {
			return model.Progress{}, false
		}
		return model.Progress{Phase: model.TaskStatusProcessing, Percent: -1, ETASec: -1}, true
	}

	return model.Progress{}, false
}

// FormatSpeed renders a transfer rate such as "1.5MiB/s"
func FormatSpeed(bytesPerSecond float64) string {
	units := []string{"B/s", "KiB/s", "MiB/s", "GiB/s"}

	i := 0
	for bytesPerSecond >= 1024 && i < len(units)-1 {
		bytesPerSecond /= 1024
		i++
	}

	if i == 0 {
		return fmt.Sprintf("%.0f%s", bytesPerSecond, units[i])
	}
	return fmt.Sprintf("%.1f%s", bytesPerSecond, units[i])
}
