package daemon

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"podpipe/internal/api"
	"podpipe/internal/logging"
)

// maxUploadBytes bounds a single uploaded file.
const maxUploadBytes = 2 << 30

// uploadExtensions are the media containers accepted for direct upload.
var uploadExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".flac": {},
	".wav":  {},
	".mp4":  {},
	".mkv":  {},
	".webm": {},
	".mov":  {},
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("parse upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := uploadExtensions[ext]; !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	uploadDir := s.daemon.cfg.UploadDir()
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("prepare upload directory: %v", err))
		return
	}

	stagedPath := filepath.Join(uploadDir, uuid.NewString()+ext)
	staged, err := os.OpenFile(stagedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("stage upload: %v", err))
		return
	}
	written, err := io.Copy(staged, file)
	closeErr := staged.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(stagedPath)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("stage upload: %v", err))
		return
	}
	if written == 0 {
		_ = os.Remove(stagedPath)
		s.writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	job, err := s.daemon.store.NewUpload(r.Context(), stagedPath, "", title, description)
	if err != nil {
		_ = os.Remove(stagedPath)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log().Info("upload staged",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("file", header.Filename),
		logging.Int64("bytes", written))
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{JobID: job.ID})
}
