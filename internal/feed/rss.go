package feed

import (
	"encoding/xml"
	"fmt"
	"time"
)

const itunesNamespace = "http://www.itunes.com/dtds/podcast-1.0.dtd"

type rssDocument struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	ItunesNS string     `xml:"xmlns:itunes,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string         `xml:"title"`
	Link           string         `xml:"link"`
	Description    string         `xml:"description"`
	Language       string         `xml:"language,omitempty"`
	LastBuildDate  string         `xml:"lastBuildDate,omitempty"`
	ItunesAuthor   string         `xml:"itunes:author,omitempty"`
	ItunesCategory *rssCategory   `xml:"itunes:category,omitempty"`
	ItunesImage    *rssImage      `xml:"itunes:image,omitempty"`
	ItunesExplicit string         `xml:"itunes:explicit,omitempty"`
	Items          []rssItem      `xml:"item"`
}

type rssCategory struct {
	Text string `xml:"text,attr"`
}

type rssImage struct {
	Href string `xml:"href,attr"`
}

type rssItem struct {
	Title          string       `xml:"title"`
	Description    string       `xml:"description,omitempty"`
	Link           string       `xml:"link,omitempty"`
	GUID           rssGUID      `xml:"guid"`
	PubDate        string       `xml:"pubDate"`
	Enclosure      rssEnclosure `xml:"enclosure"`
	ItunesDuration string       `xml:"itunes:duration,omitempty"`
	ItunesImage    *rssImage    `xml:"itunes:image,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Render serializes the channel and entries into an RSS 2.0 document with
// itunes extensions. Entries are emitted in the order given.
func Render(channel Channel, entries []Entry) ([]byte, error) {
	doc := rssDocument{
		Version:  "2.0",
		ItunesNS: itunesNamespace,
		Channel: rssChannel{
			Title:         channel.Title,
			Link:          channel.Link,
			Description:   channel.Description,
			Language:      channel.Language,
			LastBuildDate: time.Now().UTC().Format(time.RFC1123Z),
			ItunesAuthor:  channel.Author,
		},
	}
	if channel.Category != "" {
		doc.Channel.ItunesCategory = &rssCategory{Text: channel.Category}
	}
	if channel.ImageURL != "" {
		doc.Channel.ItunesImage = &rssImage{Href: channel.ImageURL}
	}

	for _, entry := range entries {
		item := rssItem{
			Title:       entry.Title,
			Description: entry.Description,
			Link:        entry.Link,
			GUID:        rssGUID{IsPermaLink: "false", Value: entry.ID},
			PubDate:     entry.PublishedAt.UTC().Format(time.RFC1123Z),
			Enclosure: rssEnclosure{
				URL:    entry.MediaURL,
				Length: entry.MediaLength,
				Type:   entry.MediaType,
			},
		}
		if entry.DurationSeconds > 0 {
			item.ItunesDuration = FormatDuration(entry.DurationSeconds)
		}
		if entry.ImageURL != "" {
			item.ItunesImage = &rssImage{Href: entry.ImageURL}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), append(payload, '\n')...), nil
}
