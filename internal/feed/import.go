package feed

import (
	"fmt"
	"io"

	"github.com/mmcdole/gofeed"
)

// ParseRSS reads an external RSS document and converts its items into feed
// entries. Items without a GUID get one derived from their enclosure URL so
// re-importing the same feed stays idempotent.
func ParseRSS(r io.Reader) (Channel, []Entry, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return Channel{}, nil, fmt.Errorf("parse feed: %w", err)
	}

	channel := Channel{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}
	if parsed.ITunesExt != nil {
		channel.Author = parsed.ITunesExt.Author
	}
	if parsed.Image != nil {
		channel.ImageURL = parsed.Image.URL
	}

	return channel, entriesFromParsed(parsed), nil
}
