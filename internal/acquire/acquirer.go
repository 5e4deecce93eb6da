// Package acquire implements the stage that materializes source media on
// local disk, either by downloading a remote source or by accepting a staged
// upload.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"podpipe/internal/config"
	"podpipe/internal/feed"
	"podpipe/internal/identity"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/services"
	"podpipe/internal/services/ytdlp"
	"podpipe/internal/stage"
)

// progressStep is the minimum percent movement before a progress update is
// written back to the store.
const progressStep = 1.0

// Acquirer downloads remote sources and validates uploads.
type Acquirer struct {
	cfg     *config.Config
	store   *jobs.Store
	feed    *feed.Store
	client  ytdlp.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	titler  cases.Caser
}

// New constructs the acquire stage. The limiter spreads remote fetches out to
// the configured per-minute budget.
func New(cfg *config.Config, store *jobs.Store, feedStore *feed.Store, client ytdlp.Client, logger *slog.Logger) *Acquirer {
	perMinute := cfg.Workflow.AcquirePerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	return &Acquirer{
		cfg:     cfg,
		store:   store,
		feed:    feedStore,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:  logger.With(logging.String(logging.FieldComponent, "acquirer")),
		titler:  cases.Title(language.English),
	}
}

// Prepare validates the job's source and short-circuits duplicates before any
// network or disk work happens.
func (a *Acquirer) Prepare(ctx context.Context, job *jobs.Job) error {
	switch job.Kind {
	case jobs.KindRemote:
		if job.CanonicalID == "" {
			return services.Wrap(services.ErrInvalidSource, "acquirer", "prepare", "job has no canonical source id", nil)
		}
	case jobs.KindUpload:
		info, err := os.Stat(job.Source)
		if err != nil {
			return services.Wrap(services.ErrAcquisition, "acquirer", "prepare", fmt.Sprintf("staged upload %s", job.Source), err)
		}
		if info.IsDir() || info.Size() == 0 {
			return services.Wrap(services.ErrAcquisition, "acquirer", "prepare", fmt.Sprintf("staged upload %s is empty", job.Source), nil)
		}
		if job.ContentToken == "" {
			token, err := identity.ForFile(job.Source)
			if err != nil {
				return services.Wrap(services.ErrAcquisition, "acquirer", "prepare", "fingerprint upload", err)
			}
			job.ContentToken = token
		}
		if job.Title == "" {
			job.Title = a.titleFromFilename(job.Source)
		}
	default:
		return services.Wrap(services.ErrInvalidSource, "acquirer", "prepare", fmt.Sprintf("unknown source kind %q", job.Kind), nil)
	}

	if job.ContentToken != "" && a.feed.Contains(job.ContentToken) {
		job.Duplicate = true
		a.logger.InfoContext(ctx, "source already published",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("content_token", job.ContentToken))
	}
	return nil
}

// Execute materializes the media file for the job and records it in
// job.MediaFile. Duplicate jobs are a no-op.
func (a *Acquirer) Execute(ctx context.Context, job *jobs.Job) error {
	if job.Duplicate {
		return nil
	}

	timeout := time.Duration(a.cfg.Workflow.AcquireTimeout) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch job.Kind {
	case jobs.KindUpload:
		job.MediaFile = job.Source
		job.SetProgress("Acquiring", "Upload staged", 100)
		return nil
	case jobs.KindRemote:
		err := a.acquireRemote(ctx, job)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "acquirer", "download",
				fmt.Sprintf("acquisition exceeded %s", timeout), err)
		}
		return err
	default:
		return services.Wrap(services.ErrInvalidSource, "acquirer", "execute", fmt.Sprintf("unknown source kind %q", job.Kind), nil)
	}
}

func (a *Acquirer) acquireRemote(ctx context.Context, job *jobs.Job) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrAcquisition, "acquirer", "throttle", "waiting for download slot", err)
	}

	if job.Title == "" || job.DurationSeconds == 0 {
		meta, err := a.client.Probe(ctx, sourceURL(job))
		if err != nil {
			return services.Wrap(services.ErrAcquisition, "acquirer", "probe", fmt.Sprintf("probe %s", job.CanonicalID), err)
		}
		if job.Title == "" {
			job.Title = meta.Title
		}
		if job.Description == "" {
			job.Description = meta.Description
		}
		if job.DurationSeconds == 0 {
			job.DurationSeconds = int64(meta.Duration)
		}
	}

	lastPercent := -progressStep
	path, err := a.client.Download(ctx, sourceURL(job), a.cfg.Paths.ScratchDir, func(update ytdlp.ProgressUpdate) {
		if update.Percent < lastPercent+progressStep && update.Status != "finished" {
			return
		}
		lastPercent = update.Percent
		job.DownloadedBytes = update.DownloadedBytes
		job.TotalBytes = update.TotalBytes
		job.SetProgress("Acquiring", downloadMessage(update), update.Percent)
		if err := a.store.Update(ctx, job); err != nil {
			a.logger.WarnContext(ctx, "progress update failed",
				logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		}
	})
	if err != nil {
		return services.Wrap(services.ErrAcquisition, "acquirer", "download", fmt.Sprintf("download %s", job.CanonicalID), err)
	}

	job.MediaFile = path
	job.SetProgress("Acquiring", "Download complete", 100)
	return nil
}

// HealthCheck reports whether the downloader binary is available.
func (a *Acquirer) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(a.cfg.Tools.YtDlp); err != nil {
		return stage.Unhealthy("acquirer", fmt.Sprintf("%s not found on PATH", a.cfg.Tools.YtDlp))
	}
	return stage.Healthy("acquirer", "downloader available")
}

func (a *Acquirer) titleFromFilename(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return base
	}
	return a.titler.String(stem)
}

func sourceURL(job *jobs.Job) string {
	if job.Source != "" {
		return job.Source
	}
	return "https://www.youtube.com/watch?v=" + job.CanonicalID
}

func downloadMessage(update ytdlp.ProgressUpdate) string {
	if update.Status == "finished" {
		return "Download complete"
	}
	if update.TotalBytes > 0 {
		return fmt.Sprintf("Downloaded %d of %d bytes", update.DownloadedBytes, update.TotalBytes)
	}
	return "Downloading"
}

var _ stage.Handler = (*Acquirer)(nil)
