// Package transcode implements the stage that converts acquired media into
// the podcast audio format.
package transcode

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

	"podpipe/internal/config"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/services"
	"podpipe/internal/services/ffmpeg"
	"podpipe/internal/stage"
)

// rawAudioExtensions are containers that podcast clients play directly. When
// conversion fails for one of these the original file is published as-is
// instead of failing the job.
var rawAudioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".flac": {},
	".wav":  {},
}

// Transcoder converts acquired media into the configured audio format.
type Transcoder struct {
	cfg    *config.Config
	client ffmpeg.Client
	logger *slog.Logger
}

// New constructs the transcode stage.
func New(cfg *config.Config, client ffmpeg.Client, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		cfg:    cfg,
		client: client,
		logger: logger.With(logging.String(logging.FieldComponent, "transcoder")),
	}
}

// Prepare verifies the acquired media file is present.
func (t *Transcoder) Prepare(ctx context.Context, job *jobs.Job) error {
	if job.Duplicate {
		return nil
	}
	if job.MediaFile == "" {
		return services.Wrap(services.ErrTranscode, "transcoder", "prepare", "job has no acquired media file", nil)
	}
	if _, err := os.Stat(job.MediaFile); err != nil {
		return services.Wrap(services.ErrTranscode, "transcoder", "prepare", fmt.Sprintf("media file %s", job.MediaFile), err)
	}
	return nil
}

// Execute produces job.AudioFile. On conversion failure the original file is
// kept when its container is already playable audio; the job carries a
// warning in that case.
func (t *Transcoder) Execute(ctx context.Context, job *jobs.Job) error {
	if job.Duplicate {
		return nil
	}

	timeout := time.Duration(t.cfg.Workflow.TranscodeTimeout) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outputPath := filepath.Join(t.cfg.Paths.ScratchDir, job.ContentToken+"."+t.cfg.Audio.Format)
	err := t.client.Transcode(ctx, ffmpeg.Request{
		InputPath:  job.MediaFile,
		OutputPath: outputPath,
		Format:     t.cfg.Audio.Format,
		Quality:    t.cfg.Audio.Quality,
		SampleRate: t.cfg.Audio.SampleRate,
		Channels:   t.cfg.Audio.Channels,
	})
	if err != nil {
		// A deadline expiry is not an encoder verdict on the input, so the
		// playable-container fallback does not apply.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			wrapped := services.Wrap(services.ErrTranscode, "transcoder", "convert",
				fmt.Sprintf("convert %s", job.MediaFile), err)
			return services.Wrap(services.ErrTimeout, "transcoder", "convert",
				fmt.Sprintf("conversion exceeded %s", timeout), wrapped)
		}
		ext := strings.ToLower(filepath.Ext(job.MediaFile))
		if _, playable := rawAudioExtensions[ext]; !playable {
			return services.Wrap(services.ErrTranscode, "transcoder", "convert", fmt.Sprintf("convert %s", job.MediaFile), err)
		}
		job.AudioFile = job.MediaFile
		job.Warning = fmt.Sprintf("conversion failed; publishing original %s container", ext)
		job.SetProgress("Transcoding", "Kept original audio container", 100)
		t.logger.WarnContext(ctx, "conversion failed, keeping original container",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("media_file", job.MediaFile),
			logging.Error(err))
		t.fillDuration(ctx, job)
		return nil
	}

	job.AudioFile = outputPath
	job.SetProgress("Transcoding", "Conversion complete", 100)
	t.fillDuration(ctx, job)

	// The acquired source is no longer needed once a converted copy exists.
	if job.MediaFile != job.AudioFile {
		if err := os.Remove(job.MediaFile); err != nil && !os.IsNotExist(err) {
			t.logger.WarnContext(ctx, "scratch cleanup failed",
				logging.String("media_file", job.MediaFile), logging.Error(err))
		}
	}
	return nil
}

func (t *Transcoder) fillDuration(ctx context.Context, job *jobs.Job) {
	if job.DurationSeconds > 0 {
		return
	}
	duration, err := t.client.ProbeDuration(ctx, job.AudioFile)
	if err != nil {
		t.logger.WarnContext(ctx, "duration probe failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}
	job.DurationSeconds = int64(duration)
}

// HealthCheck reports whether the converter binary is available.
func (t *Transcoder) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(t.cfg.Tools.FFmpeg); err != nil {
		return stage.Unhealthy("transcoder", fmt.Sprintf("%s not found on PATH", t.cfg.Tools.FFmpeg))
	}
	return stage.Healthy("transcoder", "converter available")
}

var _ stage.Handler = (*Transcoder)(nil)
