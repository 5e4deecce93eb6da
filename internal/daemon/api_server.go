package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"podpipe/internal/api"
	"podpipe/internal/config"
	"podpipe/internal/identity"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/services"
	"podpipe/internal/sourceid"
)

type apiServer struct {
	bind     string
	mediaDir string
	logger   *slog.Logger
	daemon   *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		mediaDir: cfg.Paths.MediaDir,
		logger:   logger,
		daemon:   d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/upload", srv.handleUpload)
	mux.HandleFunc("/api/jobs/", srv.handleJobItem)
	mux.HandleFunc("/api/entries", srv.handleEntries)
	mux.HandleFunc("/api/entries/", srv.handleEntryItem)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/feed.xml", srv.handleFeed)
	mux.Handle("/media/", http.StripPrefix("/media/",
		http.FileServer(http.Dir(cfg.Paths.MediaDir))))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJobs(w, r)
	case http.MethodPost:
		s.submitJob(w, r)
	case http.MethodDelete:
		s.clearJobs(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) submitJob(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	canonical, err := sourceid.Resolve(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := identity.ForSource(canonical.VideoID)
	job, err := s.daemon.store.NewRemote(r.Context(),
		canonical.WatchURL(), canonical.VideoID, token, req.Title, req.Description)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{JobID: job.ID, ContentToken: token})
}

func (s *apiServer) listJobs(w http.ResponseWriter, r *http.Request) {
	var status jobs.Status
	if value := strings.TrimSpace(r.URL.Query().Get("state")); value != "" {
		parsed, ok := jobs.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", value))
			return
		}
		status = parsed
	}

	items, err := s.daemon.store.List(r.Context(), status, 0)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(items)})
}

func (s *apiServer) clearJobs(w http.ResponseWriter, r *http.Request) {
	var (
		removed int64
		err     error
	)
	switch state := strings.TrimSpace(r.URL.Query().Get("state")); state {
	case "completed":
		removed, err = s.daemon.store.ClearCompleted(r.Context())
	case "failed":
		removed, err = s.daemon.store.ClearFailed(r.Context())
	case "", "all":
		removed, err = s.daemon.store.ClearAll(r.Context())
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", state))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.getJob(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "cancel":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.cancelJob(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "retry":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.retryJob(w, r, parts[0])
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) getJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) cancelJob(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.daemon.store.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeServiceError(w, err)
			return
		}
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) retryJob(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.daemon.store.RetryFailed(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeServiceError(w, err)
			return
		}
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := s.daemon.feed.List()
	s.writeJSON(w, http.StatusOK, api.EntryListResponse{
		Entries: api.FromEntries(entries),
		Total:   s.daemon.feed.Len(),
	})
}

func (s *apiServer) handleEntryItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, err := s.daemon.feed.Get(id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromEntry(entry))
	case http.MethodDelete:
		entry, err := s.daemon.feed.Get(id)
		if errors.Is(err, services.ErrNotFound) {
			// Deleting an absent entry is an idempotent no-op.
			s.writeJSON(w, http.StatusOK, api.RemoveEntryResponse{Found: false})
			return
		}
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if err := s.daemon.feed.Remove(id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.removeMediaArtifact(entry.MediaURL)
		s.writeJSON(w, http.StatusOK, api.RemoveEntryResponse{Found: true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// removeMediaArtifact deletes the served media file behind an enclosure URL.
// Best effort: the feed entry is already gone, a leftover file is just waste.
func (s *apiServer) removeMediaArtifact(mediaURL string) {
	name := path.Base(mediaURL)
	if name == "" || name == "." || name == "/" {
		return
	}
	target := filepath.Join(s.mediaDir, name)
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log().Warn("failed to remove media artifact",
			logging.String("file", target), logging.Error(err))
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := api.FromHealth(s.daemon.workflow.Health(r.Context()))
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	stats := make(map[string]int, len(status.JobStats))
	for key, count := range status.JobStats {
		stats[string(key)] = count
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		JobsDBPath:   status.JobsDBPath,
		FeedPath:     status.FeedPath,
		LockFilePath: status.LockFilePath,
		JobStats:     stats,
		FeedEntries:  status.FeedEntries,
		FeedRevision: status.FeedRevision,
	})
}

func (s *apiServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := s.daemon.feed.Render()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidSource):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
