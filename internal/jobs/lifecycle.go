package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"podpipe/internal/services"
)

// ClaimPending atomically transitions the oldest pending job to acquiring and
// returns it. Returns nil when no pending work exists. The single UPDATE makes
// the claim safe across concurrent workers.
func (s *Store) ClaimPending(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	row := s.db.QueryRowContext(ctx, `
		UPDATE jobs SET status = ?, updated_at = ?, last_heartbeat = ?
		WHERE id = (
			SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1
		)
		RETURNING `+jobColumns,
		string(StatusAcquiring), now, now, string(StatusPending))

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return job, nil
}

// Cancel marks a pending job as failed with a cancellation message. Jobs
// already picked up by a worker cannot be cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != StatusPending {
		return fmt.Errorf("job %s is %s; only pending jobs can be cancelled", id, job.Status)
	}
	job.SetFailed(UserCancelReason)
	return s.Update(ctx, job)
}

// RetryFailed resets a failed job back to pending so a worker picks it up
// again. The heartbeat is cleared directly since Update never touches it.
func (s *Store) RetryFailed(ctx context.Context, id string) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != StatusFailed {
		return fmt.Errorf("job %s is %s; only failed jobs can be retried", id, job.Status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(ctx, `
		UPDATE jobs SET status = ?, error_message = NULL, last_heartbeat = NULL,
			progress_stage = 'Queued', progress_message = 'Waiting for a worker',
			progress_percent = 0, updated_at = ?
		WHERE id = ?`,
		string(StatusPending), now, id)
	if err != nil {
		return fmt.Errorf("retry job %s: %w", id, err)
	}
	return nil
}

// Delete removes a single job regardless of state.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "jobs", "delete", fmt.Sprintf("job %s not found", id), nil)
	}
	return nil
}

// ClearCompleted deletes completed jobs, returning the number removed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusCompleted)
}

// ClearFailed deletes failed jobs, returning the number removed.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.clearByStatus(ctx, StatusFailed)
}

func (s *Store) clearByStatus(ctx context.Context, status Status) (int64, error) {
	result, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, string(status))
	if err != nil {
		return 0, fmt.Errorf("clear %s jobs: %w", status, err)
	}
	return result.RowsAffected()
}

// ClearAll deletes every job, returning the number removed.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	result, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return result.RowsAffected()
}

// DeleteTerminalBefore removes completed and failed jobs older than cutoff.
func (s *Store) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.execWithRetry(ctx, `
		DELETE FROM jobs
		WHERE status IN (?, ?) AND updated_at < ?`,
		string(StatusCompleted), string(StatusFailed),
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("delete old jobs: %w", err)
	}
	return result.RowsAffected()
}

// UpdateHeartbeat refreshes the heartbeat timestamp of an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(ctx, `
		UPDATE jobs SET last_heartbeat = ?
		WHERE id = ? AND status IN (?, ?, ?)`,
		now, id,
		string(StatusAcquiring), string(StatusTranscoding), string(StatusPublishing))
	if err != nil {
		return fmt.Errorf("update heartbeat for %s: %w", id, err)
	}
	return nil
}

// ReclaimStale returns in-flight jobs whose heartbeat is older than timeout to
// pending, so another worker can pick them up after a crash. Returns the IDs
// of reclaimed jobs.
func (s *Store) ReclaimStale(ctx context.Context, timeout time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-timeout).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, `
		UPDATE jobs SET status = ?, last_heartbeat = NULL,
			progress_stage = 'Queued', progress_message = 'Requeued after worker stall', progress_percent = 0
		WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?
		RETURNING id`,
		string(StatusPending),
		string(StatusAcquiring), string(StatusTranscoding), string(StatusPublishing),
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reclaimed id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
