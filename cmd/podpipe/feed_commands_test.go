package main

import (
	"path/filepath"
	"testing"
	"time"

	"podpipe/internal/feed"
	"podpipe/internal/testsupport"
)

func TestFeedImportMergesEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg)

	sourcePath := filepath.Join(t.TempDir(), "source.xml")
	source, err := feed.NewStore(sourcePath, feed.Channel{Title: "Imported Show"}, 50)
	if err != nil {
		t.Fatalf("source store: %v", err)
	}
	if _, err := source.Add(feed.Entry{
		ID:          "fedcba9876543210",
		Title:       "Archive Episode",
		MediaURL:    "https://archive.example.com/fedcba9876543210.mp3",
		MediaLength: 4096,
		MediaType:   "audio/mpeg",
		PublishedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	out, _, err := runCLI(t, []string{"feed", "import", sourcePath}, "", configPath)
	if err != nil {
		t.Fatalf("feed import: %v", err)
	}
	requireContains(t, out, "imported 1 of 1")

	dst, err := feed.NewStore(cfg.FeedPath(), feed.ChannelFromConfig(cfg), cfg.Feed.MaxItems)
	if err != nil {
		t.Fatalf("reopen feed: %v", err)
	}
	if !dst.Contains("fedcba9876543210") {
		t.Fatal("imported entry missing from feed")
	}
}

func TestFeedImportRefusesWhileDaemonRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	doc := filepath.Join(t.TempDir(), "other.xml")
	testsupport.WriteFile(t, doc, []byte("<rss/>"))

	_, _, err := runCLI(t, []string{"feed", "import", doc}, "", env.configPath)
	if err == nil {
		t.Fatal("expected refusal while daemon holds the lock")
	}
	requireContains(t, err.Error(), "daemon is running")
}
