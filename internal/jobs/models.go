package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAcquiring   Status = "acquiring"
	StatusTranscoding Status = "transcoding"
	StatusPublishing  Status = "publishing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// UserCancelReason is the error message set when a caller cancels a job.
const UserCancelReason = "Cancelled by user"

// SourceKind distinguishes how a job's media arrives.
type SourceKind string

const (
	KindRemote SourceKind = "remote"
	KindUpload SourceKind = "upload"
)

var allStatuses = []Status{
	StatusPending,
	StatusAcquiring,
	StatusTranscoding,
	StatusPublishing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAcquiring:   {},
	StatusTranscoding: {},
	StatusPublishing:  {},
}

// Job represents a pipeline job persisted in SQLite.
type Job struct {
	ID              string
	Kind            SourceKind
	Source          string
	CanonicalID     string
	ContentToken    string
	Title           string
	Description     string
	Status          Status
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	DownloadedBytes int64
	TotalBytes      int64
	DurationSeconds int64
	MediaFile       string
	AudioFile       string
	EntryID         string
	Duplicate       bool
	Warning         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsTerminal returns true once a job can no longer change state.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// SetProgress updates the three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job as failed with the given error message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// SetCompleted marks the job as completed, optionally flagged as a duplicate
// of an entry that was already in the feed.
func (j *Job) SetCompleted(entryID string, duplicate bool) {
	j.Status = StatusCompleted
	j.EntryID = entryID
	j.Duplicate = duplicate
	j.ErrorMessage = ""
	j.LastHeartbeat = nil
	if duplicate {
		j.SetProgress("Completed", "Already in feed", 100)
	} else {
		j.SetProgress("Completed", "Published to feed", 100)
	}
}
