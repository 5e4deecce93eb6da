package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"podpipe/internal/api"
	"podpipe/internal/testsupport"
)

func TestSubmitRoundTrip(t *testing.T) {
	var captured api.SubmitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{JobID: "job-1", ContentToken: "aabbccddeeff0011"})
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Submit(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "t", "d")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.JobID != "job-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if captured.URL != "https://youtu.be/dQw4w9WgXcQ" || captured.Title != "t" {
		t.Fatalf("request not forwarded: %+v", captured)
	}
}

func TestErrorPayloadSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported source locator"})
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Submit(context.Background(), "bad", "", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "unsupported source locator" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestUploadSendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			_ = file.Close()
			if header.Filename != "clip.mp3" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
		}
		if r.FormValue("title") != "Clip" {
			t.Errorf("title not forwarded: %q", r.FormValue("title"))
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{JobID: "job-2"})
	}))
	defer server.Close()

	path := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "clip.mp3"), []byte("bytes"))
	c := New(server.URL)
	resp, err := c.Upload(context.Background(), path, "Clip", "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.JobID != "job-2" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestBaseURLNormalization(t *testing.T) {
	c := New("127.0.0.1:7733")
	if c.base != "http://127.0.0.1:7733" {
		t.Fatalf("expected scheme prepended, got %q", c.base)
	}
	c = New("http://127.0.0.1:7733/")
	if c.base != "http://127.0.0.1:7733" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.base)
	}
}

func TestJobsQueryEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("state"); got != "failed" {
			t.Errorf("state not forwarded: %q", got)
		}
		_ = json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.Job{{ID: "job-3"}}})
	}))
	defer server.Close()

	c := New(server.URL)
	items, err := c.Jobs(context.Background(), "failed")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(items) != 1 || items[0].ID != "job-3" {
		t.Fatalf("unexpected jobs: %+v", items)
	}
}

func TestUnreachableDaemon(t *testing.T) {
	c := New("127.0.0.1:1")
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected error for unreachable daemon")
	}
}
