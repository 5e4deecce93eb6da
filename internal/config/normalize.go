package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePodcast()
	c.normalizeFeed()
	c.normalizeAudio()
	c.normalizeTools()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

// normalizePodcast trims channel metadata and honors the environment
// variables the original deployment shape used for container setups.
func (c *Config) normalizePodcast() {
	fromEnv := func(current, envKey string) string {
		current = strings.TrimSpace(current)
		if current != "" {
			return current
		}
		if value, ok := os.LookupEnv(envKey); ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	c.Podcast.Title = fromEnv(c.Podcast.Title, "PODCAST_TITLE")
	c.Podcast.Description = fromEnv(c.Podcast.Description, "PODCAST_DESCRIPTION")
	c.Podcast.Author = fromEnv(c.Podcast.Author, "PODCAST_AUTHOR")
	c.Podcast.Language = fromEnv(c.Podcast.Language, "PODCAST_LANGUAGE")
	c.Podcast.Category = fromEnv(c.Podcast.Category, "PODCAST_CATEGORY")
	c.Podcast.ImageURL = fromEnv(c.Podcast.ImageURL, "PODCAST_IMAGE_URL")
	c.Podcast.SiteURL = strings.TrimRight(fromEnv(c.Podcast.SiteURL, "SITE_URL"), "/")
	c.Podcast.MediaBaseURL = strings.TrimRight(fromEnv(c.Podcast.MediaBaseURL, "MEDIA_BASE_URL"), "/")

	if c.Podcast.Title == "" {
		c.Podcast.Title = defaultPodcastTitle
	}
	if c.Podcast.Language == "" {
		c.Podcast.Language = defaultPodcastLanguage
	}
	if c.Podcast.SiteURL == "" {
		c.Podcast.SiteURL = defaultSiteURL
	}
	if c.Podcast.MediaBaseURL == "" {
		c.Podcast.MediaBaseURL = c.Podcast.SiteURL + "/media"
	}
}

func (c *Config) normalizeFeed() {
	if c.Feed.MaxItems <= 0 {
		c.Feed.MaxItems = defaultFeedMaxItems
	}
	c.Feed.FileName = strings.TrimSpace(c.Feed.FileName)
	if c.Feed.FileName == "" {
		c.Feed.FileName = defaultFeedFileName
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	if c.Audio.Format == "" {
		if value, ok := os.LookupEnv("AUDIO_FORMAT"); ok {
			c.Audio.Format = strings.ToLower(strings.TrimSpace(value))
		}
	}
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
	if c.Audio.Quality <= 0 {
		c.Audio.Quality = defaultAudioQuality
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultAudioSampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaultAudioChannels
	}
}

func (c *Config) normalizeTools() {
	c.Tools.YtDlp = strings.TrimSpace(c.Tools.YtDlp)
	if c.Tools.YtDlp == "" {
		c.Tools.YtDlp = defaultYtDlpBinary
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
