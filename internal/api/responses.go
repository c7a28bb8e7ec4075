package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ytget/ytflow/internal/model"
)

// Response status values
const (
	StatusOnline  = "online"
	StatusSuccess = "success"
	StatusError   = "error"
)

// AddDownloadRequest is the body of POST /add-download
type AddDownloadRequest struct {
	URL          string `json:"url"`
	DownloadType string `json:"download_type"`
	IsPlaylist   bool   `json:"is_playlist"`
	Quality      string `json:"quality"`
	Format       string `json:"format"`
	Title        string `json:"title,omitempty"`
}

// AddDownloadResponse is returned once a request has been queued
type AddDownloadResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	TaskID  string   `json:"task_id"`
	TaskIDs []string `json:"task_ids,omitempty"`
}

// HealthResponse reports the liveness and load of the server
type HealthResponse struct {
	Status          string `json:"status"`
	QueueSize       int    `json:"queue_size"`
	ActiveDownloads int    `json:"active_downloads"`
	MaxParallel     int    `json:"max_parallel,omitempty"`
	Version         string `json:"version,omitempty"`
}

// TaskSummary is the compact task view of GET /queue
type TaskSummary struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Status   model.TaskStatus `json:"status"`
	Progress float64          `json:"progress"`
}

// QueueResponse lists active and waiting tasks
type QueueResponse struct {
	QueueSize   int           `json:"queue_size"`
	ActiveTasks []TaskSummary `json:"active_tasks"`
	QueuedTasks []TaskSummary `json:"queued_tasks"`
}

// HistoryResponse lists finished tasks, most recent first
type HistoryResponse struct {
	Tasks []model.DownloadTask `json:"tasks"`
}

// MessageResponse is a generic status reply
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse describes a rejected request
type ErrorResponse struct {
	Status string    `json:"status"`
	Detail string    `json:"detail"`
	Time   time.Time `json:"time"`
}

func summarize(tasks []model.DownloadTask) []TaskSummary {
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskSummary{
			ID:       t.ID,
			Title:    t.GetDisplayTitle(),
			Status:   t.Status,
			Progress: t.Progress,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, ErrorResponse{
		Status: StatusError,
		Detail: detail,
		Time:   time.Now(),
	})
}
