// Package feed maintains the ordered podcast feed and its RSS document.
package feed

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Entry is a single published feed item. ID is the content token derived from
// the source, which is what makes publishing idempotent.
type Entry struct {
	ID              string
	Title           string
	Description     string
	Link            string
	MediaURL        string
	MediaLength     int64
	MediaType       string
	DurationSeconds int64
	PublishedAt     time.Time
	ImageURL        string
}

// Channel carries the feed-level podcast metadata.
type Channel struct {
	Title       string
	Link        string
	Description string
	Language    string
	Author      string
	Category    string
	ImageURL    string
}

var mimeByExtension = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".opus": "audio/opus",
}

// MimeForExtension maps an audio file extension to its enclosure MIME type.
func MimeForExtension(ext string) string {
	if mime, ok := mimeByExtension[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// MimeForPath maps a file path to its enclosure MIME type.
func MimeForPath(path string) string {
	return MimeForExtension(filepath.Ext(path))
}

// FormatDuration renders seconds as HH:MM:SS, or MM:SS under an hour. This is
// the shape podcast clients expect in itunes:duration.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// ParseDuration reverses FormatDuration, tolerating a bare seconds value.
func ParseDuration(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parts := strings.Split(value, ":")
	var total int64
	for _, part := range parts {
		var n int64
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
