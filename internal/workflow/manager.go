// Package workflow drives jobs through the acquire, transcode, and publish
// stages with a bounded worker pool.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"podpipe/internal/config"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/notifications"
	"podpipe/internal/services"
	"podpipe/internal/stage"
)

// retentionSweepInterval is how often terminal jobs older than the retention
// window are purged.
const retentionSweepInterval = time.Hour

// stageBinding pairs a pipeline status with the handler that runs it.
type stageBinding struct {
	status  jobs.Status
	name    string
	handler stage.Handler
}

// Manager owns the worker pool and the background maintenance loops.
type Manager struct {
	cfg      *config.Config
	store    *jobs.Store
	stages   []stageBinding
	notifier notifications.Service
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// New constructs a manager over the three pipeline stages, in order.
func New(cfg *config.Config, store *jobs.Store, acquirer, transcoder, publisher stage.Handler, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:   cfg,
		store: store,
		stages: []stageBinding{
			{status: jobs.StatusAcquiring, name: "Acquiring", handler: acquirer},
			{status: jobs.StatusTranscoding, name: "Transcoding", handler: transcoder},
			{status: jobs.StatusPublishing, name: "Publishing", handler: publisher},
		},
		notifier: notifications.NewService(cfg),
		logger:   logger.With(logging.String(logging.FieldComponent, "workflow")),
	}
}

// Start launches the worker pool and maintenance loops. It is an error to
// start a running manager.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow manager already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	// Jobs orphaned by a previous crash go back to pending before workers start.
	if reclaimed, err := m.store.ReclaimStale(runCtx, m.heartbeatTimeout()); err != nil {
		m.logger.Warn("startup reclaim failed", logging.Error(err))
	} else if len(reclaimed) > 0 {
		m.logger.Info("requeued stalled jobs", logging.Int("count", len(reclaimed)))
	}

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func(worker int) {
			defer m.wg.Done()
			m.workerLoop(runCtx, worker)
		}(i)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.reclaimLoop(runCtx)
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.retentionLoop(runCtx)
	}()

	m.logger.Info("workflow started", logging.Int("workers", workers))
	return nil
}

// Stop halts the pool and waits for in-flight jobs to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Running reports whether the pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the most recent job processing failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Health collects readiness from every stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	results := make([]stage.Health, 0, len(m.stages))
	for _, binding := range m.stages {
		results = append(results, binding.handler.HealthCheck(ctx))
	}
	return results
}

func (m *Manager) workerLoop(ctx context.Context, worker int) {
	interval := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Drain available work before sleeping.
		for {
			job, err := m.store.ClaimPending(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.logger.Warn("claim failed", logging.Int("worker", worker), logging.Error(err))
				break
			}
			if job == nil {
				break
			}
			m.processJob(ctx, job)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job *jobs.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	stopHeartbeat := m.startHeartbeat(ctx, job.ID)
	defer stopHeartbeat()

	logger.Info("job started", logging.String("source", job.Source))

	for _, binding := range m.stages {
		if job.Status != binding.status {
			job.Status = binding.status
			job.SetProgress(binding.name, "Stage started", 0)
			if err := m.store.Update(ctx, job); err != nil {
				m.failJob(ctx, job, fmt.Errorf("persist %s transition: %w", binding.status, err))
				return
			}
		}

		ctx := services.WithStage(ctx, string(binding.status))
		if err := binding.handler.Prepare(ctx, job); err != nil {
			m.failJob(ctx, job, err)
			return
		}
		if err := binding.handler.Execute(ctx, job); err != nil {
			m.failJob(ctx, job, err)
			return
		}
		if err := m.store.Update(ctx, job); err != nil {
			m.failJob(ctx, job, fmt.Errorf("persist %s result: %w", binding.status, err))
			return
		}
		if job.Status == jobs.StatusCompleted {
			break
		}
	}

	if job.Status != jobs.StatusCompleted {
		// Publishing marks completion; reaching here without it is a stage bug.
		m.failJob(ctx, job, errors.New("pipeline finished without completing the job"))
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEntryID, job.EntryID),
		logging.Bool("duplicate", job.Duplicate))
	m.cleanupScratch(job, false)
	m.notify(ctx, job)
}

// cleanupScratch removes a terminal job's leftover files from the scratch and
// upload areas. Published media lives in the media library and is never
// touched. keepSource preserves a staged upload so a failed job stays
// retryable.
func (m *Manager) cleanupScratch(job *jobs.Job, keepSource bool) {
	mediaDir := filepath.Clean(m.cfg.Paths.MediaDir)
	paths := []string{job.MediaFile, job.AudioFile}
	if job.Kind == jobs.KindUpload && !keepSource {
		paths = append(paths, job.Source)
	}

	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if path == "" || filepath.Dir(path) == mediaDir {
			continue
		}
		if job.Kind == jobs.KindUpload && keepSource && path == job.Source {
			continue
		}
		if _, done := seen[path]; done {
			continue
		}
		seen[path] = struct{}{}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("scratch cleanup failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("file", path), logging.Error(err))
		}
	}
}

// notify is best effort; delivery failures never affect job state.
func (m *Manager) notify(ctx context.Context, job *jobs.Job) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if job.Duplicate {
		err = m.notifier.NotifyDuplicate(ctx, job.Title, job.EntryID)
	} else {
		err = m.notifier.NotifyPublished(ctx, job.Title, job.EntryID)
	}
	if err != nil {
		m.logger.Warn("notification failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
}

func (m *Manager) failJob(ctx context.Context, job *jobs.Job, cause error) {
	m.mu.Lock()
	m.lastErr = cause
	m.mu.Unlock()

	job.SetFailed(cause.Error())
	if err := m.store.Update(context.WithoutCancel(ctx), job); err != nil {
		m.logger.Error("persist failure state",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
	m.cleanupScratch(job, true)
	logging.WithContext(ctx, m.logger).Error("job failed", logging.Error(cause))

	if err := m.notifier.NotifyFailed(context.WithoutCancel(ctx), job.Source, cause.Error()); err != nil {
		m.logger.Warn("notification failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
}

func (m *Manager) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.store.UpdateHeartbeat(ctx, jobID); err != nil {
					m.logger.Warn("heartbeat failed",
						logging.String(logging.FieldJobID, jobID), logging.Error(err))
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := m.store.ReclaimStale(ctx, m.heartbeatTimeout())
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Warn("reclaim failed", logging.Error(err))
				}
				continue
			}
			if len(reclaimed) > 0 {
				m.logger.Info("requeued stalled jobs", logging.Int("count", len(reclaimed)))
			}
		}
	}
}

func (m *Manager) retentionLoop(ctx context.Context) {
	retention := time.Duration(m.cfg.Workflow.JobRetentionHours) * time.Hour
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := m.store.DeleteTerminalBefore(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Warn("retention sweep failed", logging.Error(err))
				}
				continue
			}
			if removed > 0 {
				m.logger.Info("purged old jobs", logging.Int64("removed", removed))
			}
		}
	}
}

func (m *Manager) heartbeatTimeout() time.Duration {
	timeout := time.Duration(m.cfg.Workflow.HeartbeatTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return timeout
}
