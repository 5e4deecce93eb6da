// Package jobs persists pipeline jobs in SQLite and hands them out to
// workflow workers.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"podpipe/internal/services"
)

// Store wraps the SQLite job database.
type Store struct {
	db   *sql.DB
	path string
}

const busyRetryAttempts = 5

// Open opens (creating if needed) the job database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The WAL busy handler only covers lock contention between connections;
	// a single connection keeps statement ordering simple.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isBusyError(err) {
			return err
		}
		delay := time.Duration(50*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

const jobColumns = `id, kind, source, canonical_id, content_token, title, description,
status, error_message, progress_stage, progress_percent, progress_message,
downloaded_bytes, total_bytes, duration_seconds, media_file, audio_file,
entry_id, duplicate, warning, created_at, updated_at, last_heartbeat`

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var job Job
	var canonicalID, contentToken, title, description sql.NullString
	var errorMessage, progressStage, progressMessage sql.NullString
	var mediaFile, audioFile, entryID, warning sql.NullString
	var createdAt, updatedAt, lastHeartbeat sql.NullString
	var duplicate int64

	err := scanner.Scan(
		&job.ID, &job.Kind, &job.Source, &canonicalID, &contentToken, &title,
		&description, &job.Status, &errorMessage, &progressStage,
		&job.ProgressPercent, &progressMessage, &job.DownloadedBytes,
		&job.TotalBytes, &job.DurationSeconds, &mediaFile, &audioFile,
		&entryID, &duplicate, &warning, &createdAt, &updatedAt, &lastHeartbeat,
	)
	if err != nil {
		return nil, err
	}

	job.CanonicalID = canonicalID.String
	job.ContentToken = contentToken.String
	job.Title = title.String
	job.Description = description.String
	job.ErrorMessage = errorMessage.String
	job.ProgressStage = progressStage.String
	job.ProgressMessage = progressMessage.String
	job.MediaFile = mediaFile.String
	job.AudioFile = audioFile.String
	job.EntryID = entryID.String
	job.Warning = warning.String
	job.Duplicate = duplicate != 0

	if createdAt.Valid {
		job.CreatedAt = parseTimeString(createdAt.String)
	}
	if updatedAt.Valid {
		job.UpdatedAt = parseTimeString(updatedAt.String)
	}
	if lastHeartbeat.Valid && lastHeartbeat.String != "" {
		hb := parseTimeString(lastHeartbeat.String)
		job.LastHeartbeat = &hb
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

// NewRemote inserts a pending job for a remote source locator.
func (s *Store) NewRemote(ctx context.Context, source, canonicalID, contentToken, title, description string) (*Job, error) {
	return s.insert(ctx, &Job{
		ID:           uuid.NewString(),
		Kind:         KindRemote,
		Source:       source,
		CanonicalID:  canonicalID,
		ContentToken: contentToken,
		Title:        title,
		Description:  description,
	})
}

// NewUpload inserts a pending job for an uploaded file. source is the staged
// path on disk.
func (s *Store) NewUpload(ctx context.Context, source, contentToken, title, description string) (*Job, error) {
	return s.insert(ctx, &Job{
		ID:           uuid.NewString(),
		Kind:         KindUpload,
		Source:       source,
		ContentToken: contentToken,
		Title:        title,
		Description:  description,
	})
}

func (s *Store) insert(ctx context.Context, job *Job) (*Job, error) {
	now := time.Now().UTC()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now
	job.SetProgress("Queued", "Waiting for a worker", 0)

	_, err := s.execWithRetry(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Kind), job.Source,
		nullableString(job.CanonicalID), nullableString(job.ContentToken),
		nullableString(job.Title), nullableString(job.Description),
		string(job.Status), nullableString(job.ErrorMessage),
		nullableString(job.ProgressStage), job.ProgressPercent,
		nullableString(job.ProgressMessage), job.DownloadedBytes,
		job.TotalBytes, job.DurationSeconds,
		nullableString(job.MediaFile), nullableString(job.AudioFile),
		nullableString(job.EntryID), boolToInt(job.Duplicate),
		nullableString(job.Warning),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		nullableTime(job.LastHeartbeat),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID retrieves a single job. Returns services.ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// Update persists every mutable field of the job except last_heartbeat,
// which belongs to UpdateHeartbeat: progress updates carry a heartbeat
// captured at claim time, and writing it back would roll the row behind the
// refreshes the heartbeat goroutine makes concurrently. Terminal transitions
// clear the column since nothing heartbeats a finished job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	result, err := s.execWithRetry(ctx, `
		UPDATE jobs SET
			canonical_id = ?, content_token = ?, title = ?, description = ?,
			status = ?, error_message = ?, progress_stage = ?,
			progress_percent = ?, progress_message = ?, downloaded_bytes = ?,
			total_bytes = ?, duration_seconds = ?, media_file = ?,
			audio_file = ?, entry_id = ?, duplicate = ?, warning = ?,
			updated_at = ?,
			last_heartbeat = CASE WHEN ? IN (?, ?) THEN NULL ELSE last_heartbeat END
		WHERE id = ?`,
		nullableString(job.CanonicalID), nullableString(job.ContentToken),
		nullableString(job.Title), nullableString(job.Description),
		string(job.Status), nullableString(job.ErrorMessage),
		nullableString(job.ProgressStage), job.ProgressPercent,
		nullableString(job.ProgressMessage), job.DownloadedBytes,
		job.TotalBytes, job.DurationSeconds,
		nullableString(job.MediaFile), nullableString(job.AudioFile),
		nullableString(job.EntryID), boolToInt(job.Duplicate),
		nullableString(job.Warning),
		job.UpdatedAt.Format(time.RFC3339Nano),
		string(job.Status), string(StatusCompleted), string(StatusFailed),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s: rows affected: %w", job.ID, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "jobs", "update", fmt.Sprintf("job %s not found", job.ID), nil)
	}
	return nil
}

// List returns jobs ordered newest first, optionally filtered by status.
// limit <= 0 returns all matching jobs.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// Stats returns a count of jobs per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		stats[status] = 0
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// FindByToken returns the newest job with the given content token, or nil.
func (s *Store) FindByToken(ctx context.Context, token string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE content_token = ?
		ORDER BY created_at DESC LIMIT 1`, token)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job by token: %w", err)
	}
	return job, nil
}
