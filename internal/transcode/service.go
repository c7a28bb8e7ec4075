package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/ytflow/internal/model"
)

// FFmpeg constants for re-encoding
const (
	VideoCodec    = "libx264"
	VideoPreset   = "medium"
	VideoCRF      = "23"
	AudioCodec    = "aac"
	AudioBitrate  = "128k"
	FastStartFlag = "+faststart"
)

// Executable and I/O constants
const (
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ProgressPipeTarget  = "pipe:2"
	ProgressTimePrefix  = "out_time_us="
	stderrTailLines     = 5
)

// audioCodecs maps an output extension to the ffmpeg encoder
var audioCodecs = map[string]string{
	"mp3":  "libmp3lame",
	"m4a":  "aac",
	"aac":  "aac",
	"opus": "libopus",
	"ogg":  "libvorbis",
	"flac": "flac",
	"wav":  "pcm_s16le",
}

// lossless formats ignore bitrate hints
var lossless = map[string]bool{
	"flac": true,
	"wav":  true,
}

// ErrUnsupportedFormat is returned for output formats ffmpeg cannot be asked for
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Request describes a single post-processing step
type Request struct {
	Input   string
	Kind    model.MediaKind
	Format  string
	Quality string
}

// ProgressFunc receives post-processing progress in percent
type ProgressFunc func(percent float64)

// Service runs ffmpeg and ffprobe
type Service struct {
	ffmpeg  string
	ffprobe string
}

// NewService creates a post-processing service using the given executables
func NewService(ffmpegPath, ffprobePath string) *Service {
	return &Service{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
	}
}

// Available reports whether ffmpeg was found
func (s *Service) Available() bool {
	return s.ffmpeg != ""
}

// Needed reports whether req.Input has to be converted to match the request
func (s *Service) Needed(req Request) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(req.Input), "."))
	return ext != strings.ToLower(req.Format)
}

// Process converts req.Input into the requested format next to it and
// returns the output path. The input file is removed on success, a partial
// output is removed on failure or cancellation.
func (s *Service) Process(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	if !s.Available() {
		return "", fmt.Errorf("ffmpeg is required to produce %s output", req.Format)
	}

	if _, err := os.Stat(req.Input); err != nil {
		return "", fmt.Errorf("input file does not exist: %s", req.Input)
	}

	output := OutputPath(req.Input, req.Format)

	var args []string
	var err error

	switch req.Kind {
	case model.KindAudio:
		args, err = BuildAudioArgs(req.Input, output, req.Format, req.Quality)
	default:
		args = BuildRemuxArgs(req.Input, output, req.Format)
	}
	if err != nil {
		return "", err
	}

	duration, err := s.probeDuration(ctx, req.Input)
	if err != nil {
		log.WithField("input", req.Input).Debugf("Duration unknown, progress disabled: %s", err)
	}

	err = s.run(ctx, args, output, duration, onProgress)
	if err != nil && req.Kind == model.KindVideo && ctx.Err() == nil {
		log.WithField("input", req.Input).Warnf("Stream copy failed, re-encoding: %s", err)
		err = s.run(ctx, BuildEncodeArgs(req.Input, output), output, duration, onProgress)
	}
	if err != nil {
		return "", err
	}

	if err := os.Remove(req.Input); err != nil {
		log.WithField("input", req.Input).Warnf("Failed to remove source file: %s", err)
	}

	return output, nil
}

// run executes ffmpeg and reports progress
func (s *Service) run(ctx context.Context, args []string, output string, duration float64, onProgress ProgressFunc) error {
	cmd := exec.CommandContext(ctx, s.ffmpeg, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// stderr must be drained before Wait
	tail := monitorProgress(stderr, duration, onProgress)
	err = cmd.Wait()

	if ctx.Err() != nil {
		os.Remove(output)
		return ctx.Err()
	}
	if err != nil {
		os.Remove(output)
		if len(tail) > 0 {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.Join(tail, "; "))
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	if onProgress != nil {
		onProgress(100)
	}

	return nil
}

// probeDuration gets the duration of a media file using ffprobe
func (s *Service) probeDuration(ctx context.Context, filePath string) (float64, error) {
	if s.ffprobe == "" {
		return 0, fmt.Errorf("ffprobe not available")
	}

	cmd := exec.CommandContext(ctx, s.ffprobe, "-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	return ParseDuration(string(output))
}

// ParseDuration parses the ffprobe duration output in seconds
func ParseDuration(s string) (float64, error) {
	duration, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return duration, nil
}

// monitorProgress reads ffmpeg -progress output until EOF and returns the
// last non-progress lines for error reporting
func monitorProgress(stderr io.Reader, totalDuration float64, onProgress ProgressFunc) []string {
	reader := bufio.NewReader(stderr)
	var tail []string

	// stderr must be drained even if reading stops early
	defer io.Copy(io.Discard, stderr)

	for {
		raw, isPrefix, err := reader.ReadLine()
		if err != nil {
			break
		}
		line := strings.TrimSpace(string(raw))

		// overlong lines are kept truncated
		for isPrefix && err == nil {
			_, isPrefix, err = reader.ReadLine()
		}

		if percent, ok := ParseProgressLine(line, totalDuration); ok {
			if onProgress != nil {
				onProgress(percent)
			}
			continue
		}

		if line == "" || strings.Contains(line, "=") {
			continue
		}

		tail = append(tail, line)
		if len(tail) > stderrTailLines {
			tail = tail[1:]
		}
	}

	return tail
}

// ParseProgressLine converts an out_time_us=123456 line into percent of totalDuration
func ParseProgressLine(line string, totalDuration float64) (float64, bool) {
	if !strings.HasPrefix(line, ProgressTimePrefix) || totalDuration <= 0 {
		return 0, false
	}

	timeMicroseconds, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
	if err != nil || timeMicroseconds < 0 {
		return 0, false
	}

	progress := float64(timeMicroseconds) / 1000000.0 / totalDuration * 100
	return min(progress, 100), true
}

// OutputPath swaps the extension of input for format
func OutputPath(input, format string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "." + strings.ToLower(format)
}

// BuildAudioArgs builds the ffmpeg arguments for audio extraction
func BuildAudioArgs(inputPath, outputPath, format, quality string) ([]string, error) {
	format = strings.ToLower(format)

	codec, ok := audioCodecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-map_metadata", "0",
		"-c:a", codec,
	}

	if bitrate := audioBitrate(quality); bitrate != "" && !lossless[format] {
		args = append(args, "-b:a", bitrate)
	}

	return append(args,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	), nil
}

// BuildRemuxArgs builds the ffmpeg arguments for a stream copy into another container
func BuildRemuxArgs(inputPath, outputPath, format string) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-map", "0",
		"-c", "copy",
	}

	if f := strings.ToLower(format); f == "mp4" || f == "mov" {
		args = append(args, "-movflags", FastStartFlag)
	}

	return append(args,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	)
}

// BuildEncodeArgs builds the ffmpeg arguments for a full H.264/AAC re-encode
func BuildEncodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-movflags", FastStartFlag,
		"-progress", ProgressPipeTarget,
		"-nostats",
		outputPath,
	}
}

// audioBitrate turns a quality hint such as "192" or "320k" into an ffmpeg bitrate
func audioBitrate(quality string) string {
	q := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(quality)), "k")
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return ""
	}
	return strconv.Itoa(n) + "k"
}
