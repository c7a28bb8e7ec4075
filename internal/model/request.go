package model

import (
	"fmt"
	"strings"
)

// MediaKind selects between full video and audio-only output
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// Request defaults
const (
	DefaultTitle        = "Untitled"
	DefaultVideoQuality = "1080p"
	DefaultVideoFormat  = "mp4"
	DefaultAudioQuality = "192"
	DefaultAudioFormat  = "mp3"
	QualityBest         = "best"
)

// ParseMediaKind converts a wire value into a MediaKind
func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindVideo, "":
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	}
	return "", fmt.Errorf("unsupported download type: %q", s)
}

// String returns the string representation of MediaKind
func (k MediaKind) String() string {
	return string(k)
}

// DownloadRequest carries the caller supplied parameters of a new task
type DownloadRequest struct {
	URL              string
	Kind             MediaKind
	ExpandCollection bool
	Quality          string
	Format           string
	Title            string
}

// WithDefaults returns a copy of the request with empty hints filled in
func (r DownloadRequest) WithDefaults() DownloadRequest {
	r.URL = strings.TrimSpace(r.URL)
	if r.Kind == "" {
		r.Kind = KindVideo
	}
	if strings.TrimSpace(r.Title) == "" {
		r.Title = DefaultTitle
	}

	switch r.Kind {
	case KindAudio:
		if r.Quality == "" || strings.HasSuffix(r.Quality, "p") {
			r.Quality = DefaultAudioQuality
		}
		if r.Format == "" || IsVideoContainer(r.Format) {
			r.Format = DefaultAudioFormat
		}
	default:
		if r.Quality == "" {
			r.Quality = DefaultVideoQuality
		}
		if r.Format == "" {
			r.Format = DefaultVideoFormat
		}
	}

	r.Quality = strings.ToLower(r.Quality)
	r.Format = strings.ToLower(strings.TrimPrefix(r.Format, "."))

	return r
}

// Validate checks the request shape
func (r DownloadRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	if r.Kind != KindVideo && r.Kind != KindAudio {
		return fmt.Errorf("unsupported download type: %q", r.Kind)
	}
	return nil
}

// IsVideoContainer reports whether format names a container that carries video
func IsVideoContainer(format string) bool {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "mp4", "mkv", "webm", "mov", "avi", "flv":
		return true
	}
	return false
}
