package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"podpipe/internal/api"
	"podpipe/internal/config"
	"podpipe/internal/feed"
	"podpipe/internal/jobs"
	"podpipe/internal/logging"
	"podpipe/internal/stage"
	"podpipe/internal/testsupport"
	"podpipe/internal/workflow"
)

type idleStage struct{ name string }

func (s idleStage) Prepare(ctx context.Context, job *jobs.Job) error { return nil }
func (s idleStage) Execute(ctx context.Context, job *jobs.Job) error {
	// Park until cancelled so tests can observe intermediate states.
	<-ctx.Done()
	return ctx.Err()
}
func (s idleStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.name, "ok")
}

type testHarness struct {
	cfg    *config.Config
	store  *jobs.Store
	feed   *feed.Store
	daemon *Daemon
	base   string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Workflow.QueuePollInterval = 3600 // keep workers idle during API tests

	store := testsupport.MustOpenStore(t, cfg)
	feedStore := testsupport.MustOpenFeed(t, cfg)
	manager := workflow.New(cfg, store,
		idleStage{name: "acquirer"}, idleStage{name: "transcoder"}, idleStage{name: "publisher"},
		logging.NewNop())

	d, err := New(cfg, store, feedStore, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	return &testHarness{
		cfg:    cfg,
		store:  store,
		feed:   feedStore,
		daemon: d,
		base:   "http://" + d.Addr(),
	}
}

func (h *testHarness) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(h.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var value T
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return value
}

func TestSubmitAcceptsSupportedShapes(t *testing.T) {
	h := newHarness(t)

	resp := h.postJSON(t, "/api/jobs", api.SubmitRequest{URL: "youtu.be/dQw4w9WgXcQ"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	accepted := decode[api.SubmitResponse](t, resp)
	if accepted.JobID == "" || len(accepted.ContentToken) != 16 {
		t.Fatalf("unexpected response: %+v", accepted)
	}

	job, err := h.store.GetByID(context.Background(), accepted.JobID)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.CanonicalID != "dQw4w9WgXcQ" {
		t.Fatalf("canonical id mismatch: %q", job.CanonicalID)
	}
	if job.Source != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Fatalf("source not canonicalized: %q", job.Source)
	}
}

func TestSubmitRejectsBadLocator(t *testing.T) {
	h := newHarness(t)

	resp := h.postJSON(t, "/api/jobs", api.SubmitRequest{URL: "https://vimeo.com/12345"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSubmitEquivalentShapesShareToken(t *testing.T) {
	h := newHarness(t)

	first := decode[api.SubmitResponse](t, h.postJSON(t, "/api/jobs",
		api.SubmitRequest{URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}))
	second := decode[api.SubmitResponse](t, h.postJSON(t, "/api/jobs",
		api.SubmitRequest{URL: "https://youtu.be/dQw4w9WgXcQ?t=42"}))
	if first.ContentToken != second.ContentToken {
		t.Fatalf("equivalent locators should share a token: %q vs %q", first.ContentToken, second.ContentToken)
	}
}

func TestGetJobAndNotFound(t *testing.T) {
	h := newHarness(t)

	accepted := decode[api.SubmitResponse](t, h.postJSON(t, "/api/jobs",
		api.SubmitRequest{URL: "https://youtu.be/dQw4w9WgXcQ", Title: "named"}))

	resp, err := http.Get(h.base + "/api/jobs/" + accepted.JobID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	job := decode[api.Job](t, resp)
	if job.Status != string(jobs.StatusPending) || job.Title != "named" {
		t.Fatalf("unexpected job: %+v", job)
	}

	missing, err := http.Get(h.base + "/api/jobs/no-such-job")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = missing.Body.Close() }()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}

func TestListJobsFiltersByState(t *testing.T) {
	h := newHarness(t)

	decode[api.SubmitResponse](t, h.postJSON(t, "/api/jobs",
		api.SubmitRequest{URL: "https://youtu.be/aaaaaaaaaaa"}))

	resp, err := http.Get(h.base + "/api/jobs?state=pending")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	list := decode[api.JobListResponse](t, resp)
	if len(list.Jobs) != 1 {
		t.Fatalf("expected 1 pending job, got %d", len(list.Jobs))
	}

	bad, err := http.Get(h.base + "/api/jobs?state=bogus")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = bad.Body.Close() }()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", bad.StatusCode)
	}
}

func TestCancelPendingJob(t *testing.T) {
	h := newHarness(t)

	accepted := decode[api.SubmitResponse](t, h.postJSON(t, "/api/jobs",
		api.SubmitRequest{URL: "https://youtu.be/bbbbbbbbbbb"}))

	resp, err := http.Post(h.base+"/api/jobs/"+accepted.JobID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	job := decode[api.Job](t, resp)
	if job.Status != string(jobs.StatusFailed) {
		t.Fatalf("expected failed after cancel, got %s", job.Status)
	}

	again, err := http.Post(h.base+"/api/jobs/"+accepted.JobID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	defer func() { _ = again.Body.Close() }()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double cancel, got %d", again.StatusCode)
	}
}

func TestUploadStagesFileAndCreatesJob(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "weekly-show.mp3")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("pretend audio payload")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("title", "Weekly Show"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp, err := http.Post(h.base+"/api/jobs/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, body)
	}
	accepted := decode[api.SubmitResponse](t, resp)

	job, err := h.store.GetByID(context.Background(), accepted.JobID)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if job.Kind != jobs.KindUpload || job.Title != "Weekly Show" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if !strings.HasPrefix(job.Source, h.cfg.UploadDir()) {
		t.Fatalf("upload not staged under upload dir: %q", job.Source)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, "text")
	_ = writer.Close()

	resp, err := http.Post(h.base+"/api/jobs/upload", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST upload: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEntriesAndFeedEndpoints(t *testing.T) {
	h := newHarness(t)

	if _, err := h.feed.Add(feed.Entry{
		ID:              "token-feed-000001",
		Title:           "Served Episode",
		MediaURL:        h.cfg.Podcast.MediaBaseURL + "/token-feed-000001.mp3",
		MediaLength:     2048,
		MediaType:       "audio/mpeg",
		DurationSeconds: 212,
		PublishedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed feed: %v", err)
	}

	resp, err := http.Get(h.base + "/api/entries")
	if err != nil {
		t.Fatalf("GET entries: %v", err)
	}
	list := decode[api.EntryListResponse](t, resp)
	if list.Total != 1 || len(list.Entries) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list.Entries[0].Duration != "3:32" {
		t.Fatalf("expected formatted duration, got %q", list.Entries[0].Duration)
	}

	feedResp, err := http.Get(h.base + "/feed.xml")
	if err != nil {
		t.Fatalf("GET feed: %v", err)
	}
	defer func() { _ = feedResp.Body.Close() }()
	if feedResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", feedResp.StatusCode)
	}
	if ct := feedResp.Header.Get("Content-Type"); !strings.Contains(ct, "rss+xml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(feedResp.Body)
	if err != nil {
		t.Fatalf("read feed: %v", err)
	}
	if !strings.Contains(string(body), "Served Episode") {
		t.Fatalf("feed missing entry: %s", body)
	}

	del, err := http.NewRequest(http.MethodDelete, h.base+"/api/entries/token-feed-000001", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	delResp, err := http.DefaultClient.Do(del)
	if err != nil {
		t.Fatalf("DELETE entry: %v", err)
	}
	removed := decode[api.RemoveEntryResponse](t, delResp)
	if !removed.Found {
		t.Fatalf("expected found=true, got %+v", removed)
	}
	if h.feed.Len() != 0 {
		t.Fatalf("entry not removed")
	}

	// Deleting the same entry again succeeds with found=false.
	again, err := http.NewRequest(http.MethodDelete, h.base+"/api/entries/token-feed-000001", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	againResp, err := http.DefaultClient.Do(again)
	if err != nil {
		t.Fatalf("DELETE entry again: %v", err)
	}
	if againResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for absent entry, got %d", againResp.StatusCode)
	}
	missing := decode[api.RemoveEntryResponse](t, againResp)
	if missing.Found {
		t.Fatalf("expected found=false, got %+v", missing)
	}
}

func TestMediaServing(t *testing.T) {
	h := newHarness(t)

	testsupport.WriteFile(t, h.cfg.Paths.MediaDir+"/token-media-0001.mp3", []byte("served bytes"))

	resp, err := http.Get(h.base + "/media/token-media-0001.mp3")
	if err != nil {
		t.Fatalf("GET media: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "served bytes" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHealthAndStatus(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.base + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	health := decode[api.HealthResponse](t, resp)
	if !health.Ready || len(health.Stages) != 3 {
		t.Fatalf("unexpected health: %+v", health)
	}

	statusResp, err := http.Get(h.base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	status := decode[api.StatusResponse](t, statusResp)
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.JobsDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("paths missing: %+v", status)
	}
}
