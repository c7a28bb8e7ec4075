package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/ytflow/internal/logging"
	"github.com/ytget/ytflow/internal/model"
	"github.com/ytget/ytflow/internal/platform"
	"github.com/ytget/ytflow/internal/queue"
)

// Request limits
const (
	MaxRequestBody      = 1 << 16
	DefaultHistoryLimit = 20
)

// Canceller stops queued or running tasks
type Canceller interface {
	Cancel(id string) error
}

// Expander lists the videos of a collection URL
type Expander interface {
	Expand(ctx context.Context, url string) (*model.Playlist, error)
}

// Options configures the gateway
type Options struct {
	Origins     *platform.OriginPolicy
	Expander    Expander // nil disables collection listing
	MaxParallel int
	Version     string
}

// Server translates HTTP requests into queue operations
type Server struct {
	reg    *queue.Registry
	cancel Canceller
	opts   Options

	log *log.Entry
}

// NewServer creates the gateway over reg
func NewServer(reg *queue.Registry, cancel Canceller, opts Options) *Server {
	if opts.Origins == nil {
		opts.Origins = platform.NewOriginPolicy(nil)
	}

	return &Server{
		reg:    reg,
		cancel: cancel,
		opts:   opts,
		log:    logging.WithComponent("api"),
	}
}

// Handler returns the routed handler with CORS and request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /add-download", s.handleAddDownload)
	mux.HandleFunc("GET /queue", s.handleQueue)
	mux.HandleFunc("DELETE /cancel/{task_id}", s.handleCancel)
	mux.HandleFunc("GET /tasks/{task_id}", s.handleTask)
	mux.HandleFunc("GET /history", s.handleHistory)

	return WithCORS(WithRequestLog(mux, s.log))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          StatusOnline,
		QueueSize:       s.reg.QueueDepth(),
		ActiveDownloads: s.reg.ActiveCount(),
		MaxParallel:     s.opts.MaxParallel,
		Version:         s.opts.Version,
	})
}

func (s *Server) handleAddDownload(w http.ResponseWriter, r *http.Request) {
	var body AddDownloadRequest

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBody))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := s.parseRequest(body)
	if err != nil {
		s.log.Warnf("Rejected download request: %s", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Infof("Received %s request for %s (playlist: %t, quality: %s, format: %s)",
		req.Kind, req.URL, req.ExpandCollection, req.Quality, req.Format)

	if req.ExpandCollection {
		s.addCollection(r.Context(), w, req)
		return
	}

	req.URL = platform.StripPlaylistParams(req.URL)

	id, err := s.reg.Enqueue(req)
	if err != nil {
		s.writeEnqueueError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AddDownloadResponse{
		Status:  StatusSuccess,
		Message: "Download queued successfully",
		TaskID:  id,
	})
}

// parseRequest validates the wire request against the origin policy
func (s *Server) parseRequest(body AddDownloadRequest) (model.DownloadRequest, error) {
	kind, err := model.ParseMediaKind(body.DownloadType)
	if err != nil {
		return model.DownloadRequest{}, err
	}

	url := strings.TrimSpace(body.URL)
	if url == "" {
		return model.DownloadRequest{}, errors.New("url is required")
	}
	if err := s.opts.Origins.Check(url); err != nil {
		return model.DownloadRequest{}, err
	}

	return model.DownloadRequest{
		URL:              url,
		Kind:             kind,
		ExpandCollection: body.IsPlaylist,
		Quality:          body.Quality,
		Format:           body.Format,
		Title:            body.Title,
	}.WithDefaults(), nil
}

// addCollection queues one task per collection entry. When the collection
// cannot be listed a single task is queued and the engine expands it.
func (s *Server) addCollection(ctx context.Context, w http.ResponseWriter, req model.DownloadRequest) {
	var playlist *model.Playlist

	if s.opts.Expander != nil && platform.ExtractPlaylistID(req.URL) != "" {
		var err error
		playlist, err = s.opts.Expander.Expand(ctx, req.URL)
		if err != nil {
			s.log.Warnf("Playlist listing failed, queueing as a single task: %s", err)
			playlist = nil
		}
	}

	if playlist == nil || len(playlist.Entries) == 0 {
		id, err := s.reg.Enqueue(req)
		if err != nil {
			s.writeEnqueueError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AddDownloadResponse{
			Status:  StatusSuccess,
			Message: "Playlist queued successfully",
			TaskID:  id,
		})
		return
	}

	ids := make([]string, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		item := req
		item.URL = entry.URL
		item.ExpandCollection = false
		item.Title = entry.Title

		id, err := s.reg.Enqueue(item.WithDefaults())
		if err != nil {
			s.log.Warnf("Skipping playlist entry %s: %s", entry.VideoID, err)
			continue
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "playlist has no downloadable entries")
		return
	}

	s.log.Infof("Playlist %q expanded into %d tasks", playlist.Title, len(ids))

	writeJSON(w, http.StatusOK, AddDownloadResponse{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Playlist %q queued: %d videos", playlist.Title, len(ids)),
		TaskID:  ids[0],
		TaskIDs: ids,
	})
}

func (s *Server) writeEnqueueError(w http.ResponseWriter, err error) {
	if errors.Is(err, queue.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Errorf("Error queueing download: %s", err)
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error queueing download: %s", err))
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, QueueResponse{
		QueueSize:   s.reg.QueueDepth(),
		ActiveTasks: summarize(s.reg.ListActive()),
		QueuedTasks: summarize(s.reg.ListQueued()),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")

	err := s.cancel.Cancel(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageResponse{
			Status:  StatusSuccess,
			Message: fmt.Sprintf("Task %s cancelled", id),
		})
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, queue.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Errorf("Cancel of %s failed: %s", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.reg.Lookup(r.PathValue("task_id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Tasks: s.reg.ListCompleted(limit)})
}
