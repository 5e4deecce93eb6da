package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePodcast(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePodcast() error {
	if strings.TrimSpace(c.Podcast.Title) == "" {
		return errors.New("podcast.title must be set")
	}
	for key, value := range map[string]string{
		"podcast.site_url":       c.Podcast.SiteURL,
		"podcast.media_base_url": c.Podcast.MediaBaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateFeed() error {
	if c.Feed.MaxItems <= 0 {
		return errors.New("feed.max_items must be positive")
	}
	if strings.ContainsAny(c.Feed.FileName, "/\\") {
		return fmt.Errorf("feed.file_name must be a bare file name, got %q", c.Feed.FileName)
	}
	return nil
}

func (c *Config) validateAudio() error {
	switch c.Audio.Format {
	case "mp3", "m4a":
	default:
		return fmt.Errorf("audio.format must be mp3 or m4a, got %q", c.Audio.Format)
	}
	if c.Audio.Quality < 0 || c.Audio.Quality > 9 {
		return errors.New("audio.quality must be between 0 and 9")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"workflow.acquire_timeout":     c.Workflow.AcquireTimeout,
		"workflow.transcode_timeout":   c.Workflow.TranscodeTimeout,
		"workflow.acquire_per_minute":  c.Workflow.AcquirePerMinute,
		"workflow.job_retention_hours": c.Workflow.JobRetentionHours,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
