package main

import (
	"strings"
	"testing"

	"podpipe/internal/api"
)

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortID: %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID short input: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate: %q", got)
	}
	got := truncate("a much longer label than fits", 12)
	if got != "a much lo..." {
		t.Fatalf("truncate long input: %q", got)
	}
}

func TestFormatByteProgress(t *testing.T) {
	got := formatByteProgress(512*1024, 2*1024*1024)
	if !strings.Contains(got, "of") {
		t.Fatalf("expected ranged progress, got %q", got)
	}
	if got := formatByteProgress(0, 0); got != "-" {
		t.Fatalf("expected placeholder for unknown sizes, got %q", got)
	}
}

func TestFormatJobProgressIncludesBytesWhileAcquiring(t *testing.T) {
	line := formatJobProgress(api.Job{
		Status:          "acquiring",
		ProgressStage:   "Downloading",
		ProgressPercent: 40,
		DownloadedBytes: 4 * 1024 * 1024,
		TotalBytes:      10 * 1024 * 1024,
	})
	if !strings.Contains(line, "Downloading 40%") {
		t.Fatalf("unexpected progress line: %q", line)
	}
	if !strings.Contains(line, "of") {
		t.Fatalf("expected byte progress in %q", line)
	}
}

func TestRenderTableHandlesRaggedRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, nil)
	if !strings.Contains(out, "A") || !strings.Contains(out, "1") {
		t.Fatalf("unexpected table output: %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output for empty headers")
	}
}
