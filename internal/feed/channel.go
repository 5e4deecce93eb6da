package feed

import "podpipe/internal/config"

// ChannelFromConfig maps the configured podcast metadata onto a feed channel.
func ChannelFromConfig(cfg *config.Config) Channel {
	return Channel{
		Title:       cfg.Podcast.Title,
		Link:        cfg.Podcast.SiteURL,
		Description: cfg.Podcast.Description,
		Language:    cfg.Podcast.Language,
		Author:      cfg.Podcast.Author,
		Category:    cfg.Podcast.Category,
		ImageURL:    cfg.Podcast.ImageURL,
	}
}
