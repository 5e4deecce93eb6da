package acquire

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"podpipe/internal/feed"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/services"
	"podpipe/internal/services/ytdlp"
	"podpipe/internal/testsupport"
)

type fakeDownloader struct {
	meta        *ytdlp.Metadata
	probeErr    error
	downloadErr error
	path        string
	updates     []ytdlp.ProgressUpdate
	probed      bool
	downloaded  bool
	hang        bool
}

func (f *fakeDownloader) Probe(ctx context.Context, url string) (*ytdlp.Metadata, error) {
	f.probed = true
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.meta, nil
}

func (f *fakeDownloader) Download(ctx context.Context, url, destDir string, progress func(ytdlp.ProgressUpdate)) (string, error) {
	f.downloaded = true
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	for _, update := range f.updates {
		if progress != nil {
			progress(update)
		}
	}
	if f.path != "" {
		return f.path, nil
	}
	return filepath.Join(destDir, "dQw4w9WgXcQ.webm"), nil
}

func newRemoteJob(t *testing.T, store *jobs.Store) *jobs.Job {
	t.Helper()
	job, err := store.NewRemote(context.Background(),
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", "token-remote-001", "", "")
	if err != nil {
		t.Fatalf("new remote job: %v", err)
	}
	return job
}

func TestExecuteRemoteProbesAndDownloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	client := &fakeDownloader{
		meta: &ytdlp.Metadata{ID: "dQw4w9WgXcQ", Title: "Test Clip", Description: "desc", Duration: 212.7},
		updates: []ytdlp.ProgressUpdate{
			{Status: "downloading", Percent: 50, DownloadedBytes: 512, TotalBytes: 1024},
			{Status: "finished", Percent: 100, DownloadedBytes: 1024, TotalBytes: 1024},
		},
	}
	acquirer := New(cfg, store, feedStore, client, logging.NewNop())

	job := newRemoteJob(t, store)
	if err := acquirer.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := acquirer.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !client.probed || !client.downloaded {
		t.Fatalf("expected probe and download, got probed=%v downloaded=%v", client.probed, client.downloaded)
	}
	if job.Title != "Test Clip" || job.DurationSeconds != 212 {
		t.Fatalf("metadata not applied: %+v", job)
	}
	if job.MediaFile == "" {
		t.Fatal("expected media file to be recorded")
	}

	persisted, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if persisted.DownloadedBytes != 1024 {
		t.Fatalf("progress not relayed to store: %+v", persisted)
	}
}

func TestPrepareFlagsDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	if _, err := feedStore.Add(feed.Entry{
		ID: "token-remote-001", Title: "existing", MediaURL: "http://localhost/media/x.mp3",
		MediaType: "audio/mpeg", PublishedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed feed: %v", err)
	}

	client := &fakeDownloader{}
	acquirer := New(cfg, store, feedStore, client, logging.NewNop())

	job := newRemoteJob(t, store)
	if err := acquirer.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !job.Duplicate {
		t.Fatal("expected duplicate flag")
	}

	if err := acquirer.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if client.downloaded {
		t.Fatal("duplicate job should not download")
	}
}

func TestExecuteDownloadFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	client := &fakeDownloader{
		meta:        &ytdlp.Metadata{Title: "x"},
		downloadErr: errors.New("network unreachable"),
	}
	acquirer := New(cfg, store, feedStore, client, logging.NewNop())

	job := newRemoteJob(t, store)
	if err := acquirer.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	err := acquirer.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected ErrAcquisition, got %v", err)
	}
}

func TestExecuteRemoteTimesOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.AcquireTimeout = 1
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	client := &fakeDownloader{
		meta: &ytdlp.Metadata{Title: "slow clip", Duration: 10},
		hang: true,
	}
	acquirer := New(cfg, store, feedStore, client, logging.NewNop())

	job := newRemoteJob(t, store)
	if err := acquirer.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	err := acquirer.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("timeout should still read as an acquisition failure, got %v", err)
	}
}

func TestPrepareUploadFingerprintsAndTitles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	staged := testsupport.WriteFile(t,
		filepath.Join(cfg.UploadDir(), "deep_dive-episode.mp3"), []byte("audio bytes"))
	job, err := store.NewUpload(context.Background(), staged, "", "", "")
	if err != nil {
		t.Fatalf("new upload: %v", err)
	}

	acquirer := New(cfg, store, feedStore, &fakeDownloader{}, logging.NewNop())
	if err := acquirer.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(job.ContentToken) != 16 {
		t.Fatalf("expected 16-char token, got %q", job.ContentToken)
	}
	if job.Title != "Deep Dive Episode" {
		t.Fatalf("expected inferred title, got %q", job.Title)
	}

	if err := acquirer.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if job.MediaFile != staged {
		t.Fatalf("expected staged path, got %q", job.MediaFile)
	}
}

func TestPrepareUploadMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	job, err := store.NewUpload(context.Background(), filepath.Join(cfg.UploadDir(), "absent.mp3"), "", "", "")
	if err != nil {
		t.Fatalf("new upload: %v", err)
	}

	acquirer := New(cfg, store, feedStore, &fakeDownloader{}, logging.NewNop())
	if err := acquirer.Prepare(context.Background(), job); !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected ErrAcquisition, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)

	acquirer := New(cfg, store, feedStore, &fakeDownloader{}, logging.NewNop())
	health := acquirer.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy with stubbed binaries: %+v", health)
	}

	cfg.Tools.YtDlp = "definitely-not-a-binary"
	if health := acquirer.HealthCheck(context.Background()); health.Ready {
		t.Fatalf("expected unhealthy for missing binary: %+v", health)
	}
}
