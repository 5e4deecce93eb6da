package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func relativeTime(at time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return humanize.Time(at)
}

func formatBytes(size int64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}

func formatByteProgress(downloaded, total int64) string {
	if total <= 0 {
		return formatBytes(downloaded)
	}
	return fmt.Sprintf("%s of %s", humanize.Bytes(uint64(downloaded)), humanize.Bytes(uint64(total)))
}
