// Package api defines the wire types shared by the HTTP server and the CLI
// client.
package api

import (
	"time"

	"podpipe/internal/feed"
	"podpipe/internal/jobs"
	"podpipe/internal/stage"
)

// SubmitRequest asks the daemon to ingest a remote source.
type SubmitRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID        string `json:"job_id"`
	ContentToken string `json:"content_token,omitempty"`
}

// Job is the wire representation of a pipeline job.
type Job struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Source          string     `json:"source"`
	CanonicalID     string     `json:"canonical_id,omitempty"`
	ContentToken    string     `json:"content_token,omitempty"`
	Title           string     `json:"title,omitempty"`
	Status          string     `json:"status"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ProgressStage   string     `json:"progress_stage,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	DownloadedBytes int64      `json:"downloaded_bytes,omitempty"`
	TotalBytes      int64      `json:"total_bytes,omitempty"`
	DurationSeconds int64      `json:"duration_seconds,omitempty"`
	EntryID         string     `json:"entry_id,omitempty"`
	Duplicate       bool       `json:"duplicate,omitempty"`
	Warning         string     `json:"warning,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

// JobListResponse carries a page of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ClearResponse reports how many jobs a clear operation removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// Entry is the wire representation of a feed entry.
type Entry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Link            string    `json:"link,omitempty"`
	MediaURL        string    `json:"media_url"`
	MediaLength     int64     `json:"media_length"`
	MediaType       string    `json:"media_type"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	Duration        string    `json:"duration,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
}

// EntryListResponse carries the feed entries.
type EntryListResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// RemoveEntryResponse reports whether a deleted entry existed. Deleting an
// absent entry is not an error.
type RemoveEntryResponse struct {
	Found bool `json:"found"`
}

// StageHealth mirrors a stage readiness result.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse aggregates daemon readiness.
type HealthResponse struct {
	Ready  bool          `json:"ready"`
	Stages []StageHealth `json:"stages"`
}

// StatusResponse describes the running daemon.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	JobsDBPath   string         `json:"jobs_db_path"`
	FeedPath     string         `json:"feed_path"`
	LockFilePath string         `json:"lock_file_path"`
	JobStats     map[string]int `json:"job_stats"`
	FeedEntries  int            `json:"feed_entries"`
	FeedRevision uint64         `json:"feed_revision"`
}

// FromJob converts a stored job into its wire form.
func FromJob(job *jobs.Job) Job {
	return Job{
		ID:              job.ID,
		Kind:            string(job.Kind),
		Source:          job.Source,
		CanonicalID:     job.CanonicalID,
		ContentToken:    job.ContentToken,
		Title:           job.Title,
		Status:          string(job.Status),
		ErrorMessage:    job.ErrorMessage,
		ProgressStage:   job.ProgressStage,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		DownloadedBytes: job.DownloadedBytes,
		TotalBytes:      job.TotalBytes,
		DurationSeconds: job.DurationSeconds,
		EntryID:         job.EntryID,
		Duplicate:       job.Duplicate,
		Warning:         job.Warning,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		LastHeartbeat:   job.LastHeartbeat,
	}
}

// FromJobs converts a batch of stored jobs.
func FromJobs(items []*jobs.Job) []Job {
	out := make([]Job, 0, len(items))
	for _, item := range items {
		out = append(out, FromJob(item))
	}
	return out
}

// FromEntry converts a feed entry into its wire form.
func FromEntry(entry feed.Entry) Entry {
	return Entry{
		ID:              entry.ID,
		Title:           entry.Title,
		Description:     entry.Description,
		Link:            entry.Link,
		MediaURL:        entry.MediaURL,
		MediaLength:     entry.MediaLength,
		MediaType:       entry.MediaType,
		DurationSeconds: entry.DurationSeconds,
		Duration:        feed.FormatDuration(entry.DurationSeconds),
		PublishedAt:     entry.PublishedAt,
	}
}

// FromEntries converts a batch of feed entries.
func FromEntries(entries []feed.Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromHealth converts stage readiness results.
func FromHealth(results []stage.Health) HealthResponse {
	resp := HealthResponse{Ready: true}
	for _, result := range results {
		resp.Stages = append(resp.Stages, StageHealth{
			Name:   result.Name,
			Ready:  result.Ready,
			Detail: result.Detail,
		})
		if !result.Ready {
			resp.Ready = false
		}
	}
	return resp
}
