package config

const (
	defaultScratchDir        = "~/.local/share/podpipe/scratch"
	defaultMediaDir          = "~/.local/share/podpipe/media"
	defaultDataDir           = "~/.local/share/podpipe/data"
	defaultLogDir            = "~/.local/share/podpipe/logs"
	defaultAPIBind           = "127.0.0.1:7733"
	defaultPodcastTitle      = "Podpipe Feed"
	defaultPodcastDesc       = "Audio converted from submitted media sources"
	defaultPodcastAuthor     = "podpipe"
	defaultPodcastLanguage   = "en"
	defaultPodcastCategory   = "Technology"
	defaultSiteURL           = "http://localhost:7733"
	defaultFeedMaxItems      = 50
	defaultFeedFileName      = "feed.xml"
	defaultAudioFormat       = "mp3"
	defaultAudioQuality      = 2
	defaultAudioSampleRate   = 44100
	defaultAudioChannels     = 2
	defaultYtDlpBinary       = "yt-dlp"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultWorkers           = 2
	defaultQueuePollInterval = 5
	defaultAcquireTimeout    = 1800
	defaultTranscodeTimeout  = 1200
	defaultAcquirePerMinute  = 6
	defaultJobRetentionHours = 168
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			MediaDir:   defaultMediaDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Podcast: Podcast{
			Title:       defaultPodcastTitle,
			Description: defaultPodcastDesc,
			Author:      defaultPodcastAuthor,
			Language:    defaultPodcastLanguage,
			Category:    defaultPodcastCategory,
			SiteURL:     defaultSiteURL,
		},
		Feed: Feed{
			MaxItems: defaultFeedMaxItems,
			FileName: defaultFeedFileName,
		},
		Audio: Audio{
			Format:     defaultAudioFormat,
			Quality:    defaultAudioQuality,
			SampleRate: defaultAudioSampleRate,
			Channels:   defaultAudioChannels,
		},
		Tools: Tools{
			YtDlp:   defaultYtDlpBinary,
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			QueuePollInterval: defaultQueuePollInterval,
			AcquireTimeout:    defaultAcquireTimeout,
			TranscodeTimeout:  defaultTranscodeTimeout,
			AcquirePerMinute:  defaultAcquirePerMinute,
			JobRetentionHours: defaultJobRetentionHours,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
