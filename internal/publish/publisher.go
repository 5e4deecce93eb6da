// Package publish implements the stage that moves converted audio into the
// media library and appends the feed entry.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"podpipe/internal/config"
	"podpipe/internal/feed"
	"podpipe/internal/fileutil"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/services"
	"podpipe/internal/sourceid"
	"podpipe/internal/stage"
)

// Publisher finalizes jobs by publishing their audio into the feed.
type Publisher struct {
	cfg    *config.Config
	feed   *feed.Store
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs the publish stage.
func New(cfg *config.Config, feedStore *feed.Store, logger *slog.Logger) *Publisher {
	return &Publisher{
		cfg:    cfg,
		feed:   feedStore,
		logger: logger.With(logging.String(logging.FieldComponent, "publisher")),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Prepare verifies the converted audio and content token are present.
func (p *Publisher) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Duplicate {
		return nil
	}
	if job.ContentToken == "" {
		return services.Wrap(services.ErrFeedPersist, "publisher", "prepare", "job has no content token", nil)
	}
	if job.AudioFile == "" {
		return services.Wrap(services.ErrFeedPersist, "publisher", "prepare", "job has no converted audio file", nil)
	}
	if _, err := os.Stat(job.AudioFile); err != nil {
		return services.Wrap(services.ErrFeedPersist, "publisher", "prepare", fmt.Sprintf("audio file %s", job.AudioFile), err)
	}
	return nil
}

// Execute publishes the job. Concurrent jobs carrying the same content token
// serialize on a per-token lock, so exactly one of them appends the entry and
// the rest complete as duplicates.
func (p *Publisher) Execute(ctx context.Context, job *jobs.Job) error {
	if job.Duplicate {
		job.SetCompleted(job.ContentToken, true)
		return nil
	}

	unlock := p.lockToken(job.ContentToken)
	defer unlock()

	if p.feed.Contains(job.ContentToken) {
		p.removeScratch(job.AudioFile)
		job.SetCompleted(job.ContentToken, true)
		return nil
	}

	fileName := job.ContentToken + filepath.Ext(job.AudioFile)
	finalPath := filepath.Join(p.cfg.Paths.MediaDir, fileName)
	if err := fileutil.MoveFile(job.AudioFile, finalPath); err != nil {
		return services.Wrap(services.ErrFeedPersist, "publisher", "stage media", fmt.Sprintf("move %s into library", job.AudioFile), err)
	}
	job.AudioFile = finalPath

	info, err := os.Stat(finalPath)
	if err != nil {
		return services.Wrap(services.ErrFeedPersist, "publisher", "stage media", fmt.Sprintf("stat %s", finalPath), err)
	}

	entry := feed.Entry{
		ID:              job.ContentToken,
		Title:           job.Title,
		Description:     job.Description,
		Link:            entryLink(job),
		MediaURL:        p.cfg.Podcast.MediaBaseURL + "/" + fileName,
		MediaLength:     info.Size(),
		MediaType:       feed.MimeForPath(finalPath),
		DurationSeconds: job.DurationSeconds,
		PublishedAt:     time.Now().UTC(),
	}
	if entry.Title == "" {
		entry.Title = job.ContentToken
	}

	added, err := p.feed.Add(entry)
	if err != nil {
		return err
	}
	job.SetCompleted(job.ContentToken, !added)
	p.logger.InfoContext(ctx, "entry published",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldEntryID, entry.ID),
		logging.Bool("duplicate", !added))
	return nil
}

// HealthCheck reports whether the media library is writable.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	probe := filepath.Join(p.cfg.Paths.MediaDir, ".podpipe-health")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return stage.Unhealthy("publisher", fmt.Sprintf("media directory not writable: %v", err))
	}
	_ = os.Remove(probe)
	return stage.Healthy("publisher", "media library writable")
}

func (p *Publisher) lockToken(token string) func() {
	p.mu.Lock()
	lock, ok := p.locks[token]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[token] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (p *Publisher) removeScratch(path string) {
	if filepath.Dir(path) == filepath.Clean(p.cfg.Paths.MediaDir) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("scratch cleanup failed", logging.String("audio_file", path), logging.Error(err))
	}
}

func entryLink(job *jobs.Job) string {
	if job.Kind == jobs.KindRemote && job.CanonicalID != "" {
		return sourceid.Canonical{VideoID: job.CanonicalID}.WatchURL()
	}
	return ""
}

var _ stage.Handler = (*Publisher)(nil)
