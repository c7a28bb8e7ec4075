package model

import (
	"fmt"
	"strings"
	"time"
)

// ShortIDLength is the number of id characters shown in compact views
const ShortIDLength = 8

// DownloadTask represents a single download task
type DownloadTask struct {
	ID               string     `json:"id"`
	URL              string     `json:"url"`
	Kind             MediaKind  `json:"download_type"`
	ExpandCollection bool       `json:"is_playlist"`
	Quality          string     `json:"quality"`
	Format           string     `json:"format"`
	Title            string     `json:"title"`
	Status           TaskStatus `json:"status"`

	Progress           float64 `json:"progress"`                      // 0 to 100, download part
	ProcessingProgress float64 `json:"processing_progress,omitempty"` // 0 to 100, post-processing part
	Speed              string  `json:"speed,omitempty"`               // human readable speed (e.g., "1.2MB/s")
	ETASec             int     `json:"eta_sec"`                       // ETA in seconds, -1 if unknown

	Error       string   `json:"error,omitempty"`
	OutputPaths []string `json:"output_paths,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Progress is a single progress observation reported by the engine
type Progress struct {
	Phase   TaskStatus // Downloading or Processing
	Percent float64    // negative when unknown
	Speed   string
	ETASec  int
}

// NewDownloadTask creates a queued task from a request
func NewDownloadTask(id string, req DownloadRequest) *DownloadTask {
	return &DownloadTask{
		ID:               id,
		URL:              req.URL,
		Kind:             req.Kind,
		ExpandCollection: req.ExpandCollection,
		Quality:          req.Quality,
		Format:           req.Format,
		Title:            req.Title,
		Status:           TaskStatusQueued,
		ETASec:           -1,
		CreatedAt:        time.Now(),
	}
}

// Clone returns a detached copy of the task
func (dt *DownloadTask) Clone() DownloadTask {
	c := *dt
	if dt.OutputPaths != nil {
		c.OutputPaths = append([]string(nil), dt.OutputPaths...)
	}
	return c
}

// ApplyProgress merges a progress observation into an active task.
// Progress never decreases and a task never moves back from Processing.
func (dt *DownloadTask) ApplyProgress(p Progress) {
	if !dt.Status.IsActive() {
		return
	}

	if p.Phase == TaskStatusProcessing && dt.Status == TaskStatusDownloading {
		dt.Status = TaskStatusProcessing
		dt.Progress = 100
		dt.Speed = ""
		dt.ETASec = -1
	}

	switch {
	case dt.Status == TaskStatusDownloading && p.Phase == TaskStatusDownloading:
		if p.Percent > dt.Progress {
			dt.Progress = min(p.Percent, 100)
		}
		if p.Speed != "" {
			dt.Speed = p.Speed
		}
		if p.ETASec >= 0 {
			dt.ETASec = p.ETASec
		}
	case dt.Status == TaskStatusProcessing && p.Phase == TaskStatusProcessing:
		if p.Percent > dt.ProcessingProgress {
			dt.ProcessingProgress = min(p.Percent, 100)
		}
	}
}

// GetShortID returns the leading part of the id for compact output
func (dt *DownloadTask) GetShortID() string {
	if len(dt.ID) <= ShortIDLength {
		return dt.ID
	}
	return dt.ID[:ShortIDLength]
}

// GetETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (dt *DownloadTask) GetETAString() string {
	if dt.ETASec <= 0 {
		return "—"
	}

	hours := dt.ETASec / 3600
	minutes := (dt.ETASec % 3600) / 60
	seconds := dt.ETASec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// GetDisplayTitle returns title, filename, or URL in order of preference
func (dt *DownloadTask) GetDisplayTitle() string {
	if dt.Title != "" && dt.Title != DefaultTitle && !strings.HasPrefix(dt.Title, "http") {
		return dt.Title
	}

	if len(dt.OutputPaths) > 0 {
		// Support both / and \ separators
		parts := strings.FieldsFunc(dt.OutputPaths[0], func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}

	if dt.Title != "" && dt.Title != DefaultTitle {
		return dt.Title
	}
	if dt.URL == "" {
		return DefaultTitle
	}
	return dt.URL
}
