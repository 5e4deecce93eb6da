package sourceid

import (
	"errors"
	"testing"

	"podpipe/internal/services"
)

func TestResolveEquivalentShapes(t *testing.T) {
	const want = "dQw4w9WgXcQ"
	locators := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ",
		"http://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ",
		"www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube.com/v/dQw4w9WgXcQ",
		"https://www.youtube.com/live/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=15s",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&",
		"https://youtu.be/dQw4w9WgXcQ?t=30",
		"  https://youtu.be/dQw4w9WgXcQ  ",
	}
	for _, locator := range locators {
		canonical, err := Resolve(locator)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", locator, err)
		}
		if canonical.VideoID != want {
			t.Fatalf("Resolve(%q) = %q, want %q", locator, canonical.VideoID, want)
		}
	}
}

func TestResolveRejectsBadLocators(t *testing.T) {
	locators := []string{
		"",
		"   ",
		"https://vimeo.com/12345",
		"https://www.youtube.com/",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/playlist?list=PL123",
		"https://youtu.be/",
		"not a url at all",
		"https://www.youtube.com/embed/",
	}
	for _, locator := range locators {
		if _, err := Resolve(locator); err == nil {
			t.Fatalf("Resolve(%q) succeeded, want error", locator)
		} else if !errors.Is(err, services.ErrInvalidSource) {
			t.Fatalf("Resolve(%q) error %v does not match ErrInvalidSource", locator, err)
		}
	}
}

func TestResolveIsPure(t *testing.T) {
	first, err := Resolve("https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := Resolve("https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical canonical values, got %+v and %+v", first, second)
	}
}

func TestWatchURL(t *testing.T) {
	canonical := Canonical{VideoID: "dQw4w9WgXcQ"}
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	if got := canonical.WatchURL(); got != want {
		t.Fatalf("WatchURL() = %q, want %q", got, want)
	}
}

func TestIsVideoID(t *testing.T) {
	cases := map[string]bool{
		"dQw4w9WgXcQ":  true,
		"a1B2c3D4e5_":  true,
		"short":        false,
		"":             false,
		"dQw4w9WgXcQ1": false,
		"dQw4w9WgXc!":  false,
	}
	for value, want := range cases {
		if got := IsVideoID(value); got != want {
			t.Fatalf("IsVideoID(%q) = %v, want %v", value, got, want)
		}
	}
}
