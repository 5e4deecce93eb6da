// Package testsupport provides shared builders for package tests.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"podpipe/internal/config"
	"podpipe/internal/feed"
	"podpipe/internal/jobs"
)

// ConfigOption adjusts the test configuration.
type ConfigOption func(*testing.T, *config.Config)

// WithStubbedBinaries installs no-op executables on PATH and points the tool
// settings at them, so health checks pass without the real tools installed.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"yt-dlp", "ffmpeg", "ffprobe"}
	}
	return func(t *testing.T, cfg *config.Config) {
		t.Helper()
		binDir := filepath.Join(t.TempDir(), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("create stub bin dir: %v", err)
		}
		for _, name := range names {
			path := filepath.Join(binDir, name)
			if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
		cfg.Tools.YtDlp = "yt-dlp"
		cfg.Tools.FFmpeg = "ffmpeg"
		cfg.Tools.FFprobe = "ffprobe"
	}
}

// NewConfig builds a validated configuration rooted in temp directories.
func NewConfig(t *testing.T, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ScratchDir = filepath.Join(root, "scratch")
	cfg.Paths.MediaDir = filepath.Join(root, "media")
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Podcast.MediaBaseURL = cfg.Podcast.SiteURL + "/media"

	for _, opt := range opts {
		opt(t, &cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate test config: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a job store backed by the config's data directory.
func MustOpenStore(t *testing.T, cfg *config.Config) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(context.Background(), cfg.JobsDBPath())
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// MustOpenFeed opens a feed store backed by the config's data directory.
func MustOpenFeed(t *testing.T, cfg *config.Config) *feed.Store {
	t.Helper()
	store, err := feed.NewStore(cfg.FeedPath(), feed.ChannelFromConfig(cfg), cfg.Feed.MaxItems)
	if err != nil {
		t.Fatalf("open feed store: %v", err)
	}
	return store
}

// WriteFile creates a file with the given contents, creating parents.
func WriteFile(t *testing.T, path string, contents []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent dir: %v", err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
