package sourceid

import (
	"net/url"
	"regexp"
	"strings"

	"podpipe/internal/services"
)

// Canonical is the normalized form of a supported media locator. Two locators
// that reference the same video always resolve to the same Canonical value.
type Canonical struct {
	VideoID string
}

// WatchURL returns the canonical watch URL for the resolved video.
func (c Canonical) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + c.VideoID
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var supportedHosts = map[string]struct{}{
	"youtube.com":   {},
	"m.youtube.com": {},
	"youtu.be":      {},
}

// pathPrefixes maps URL path shapes that embed the video id as the next
// path segment.
var pathPrefixes = []string{"/embed/", "/v/", "/live/", "/shorts/"}

// IsVideoID reports whether the value is a well-formed 11-character video id.
func IsVideoID(value string) bool {
	return videoIDPattern.MatchString(value)
}

// Resolve normalizes a raw locator string into its canonical video id.
// It accepts watch, short-link, embed, live, and shorts URL shapes, tolerates
// a missing scheme and trailing query junk, and ignores irrelevant query
// parameters such as timestamps. Resolve performs no network access.
func Resolve(raw string) (Canonical, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Canonical{}, services.Wrap(services.ErrInvalidSource, "resolver", "parse", "empty locator", nil)
	}
	trimmed = strings.TrimRight(trimmed, "?&")

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Canonical{}, services.Wrap(services.ErrInvalidSource, "resolver", "parse", "malformed locator", err)
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if _, ok := supportedHosts[host]; !ok {
		return Canonical{}, services.Wrap(services.ErrInvalidSource, "resolver", "parse", "unsupported host "+host, nil)
	}

	id := extractVideoID(host, parsed)
	if !IsVideoID(id) {
		return Canonical{}, services.Wrap(services.ErrInvalidSource, "resolver", "parse", "no video id in locator", nil)
	}
	return Canonical{VideoID: id}, nil
}

func extractVideoID(host string, parsed *url.URL) string {
	path := parsed.EscapedPath()

	if host == "youtu.be" {
		return strings.Trim(path, "/")
	}

	if path == "/watch" {
		return parsed.Query().Get("v")
	}
	for _, prefix := range pathPrefixes {
		if strings.HasPrefix(path, prefix) {
			rest := strings.TrimPrefix(path, prefix)
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				rest = rest[:idx]
			}
			return rest
		}
	}
	return ""
}
