package config

const (
	defaultVideoDir                = "downloads"
	defaultSubtitleDir             = "subtitles"
	defaultLogDir                  = "~/.local/share/downie/logs"
	defaultHistoryDB               = "~/.local/share/downie/history.db"
	defaultRetries                 = 3
	defaultBackoffInitialMS        = 500
	defaultBackoffMaxMS            = 30_000
	defaultAttemptTimeoutSeconds   = 1800
	defaultExtractTimeoutSeconds   = 120
	defaultMaxConnections          = 4
	defaultSegmentMinBytes         = 8 << 20
	defaultUserAgent               = "downie/dev"
	defaultYtDLPBinary             = "yt-dlp"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultTranscodeTimeoutSeconds = 7200
	defaultSubtitleWorkers         = 4
	defaultArtworkMaxPx            = 600
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"

	maxConnectionsLimit = 8
	maxRetriesLimit     = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			VideoDir:    defaultVideoDir,
			SubtitleDir: defaultSubtitleDir,
			LogDir:      defaultLogDir,
			HistoryDB:   defaultHistoryDB,
		},
		Network: Network{
			Retries:               defaultRetries,
			BackoffInitialMS:      defaultBackoffInitialMS,
			BackoffMaxMS:          defaultBackoffMaxMS,
			AttemptTimeoutSeconds: defaultAttemptTimeoutSeconds,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
			MaxConnections:        defaultMaxConnections,
			SegmentMinBytes:       defaultSegmentMinBytes,
			UserAgent:             defaultUserAgent,
		},
		Tools: Tools{
			YtDLP:                   defaultYtDLPBinary,
			FFmpeg:                  defaultFFmpegBinary,
			FFprobe:                 defaultFFprobeBinary,
			TranscodeTimeoutSeconds: defaultTranscodeTimeoutSeconds,
		},
		Subtitles: Subtitles{
			Languages:     []string{"en"},
			Formats:       []string{"srt"},
			Workers:       defaultSubtitleWorkers,
			AutoGenerated: true,
			ConvertSRT:    true,
			FixEncoding:   true,
		},
		Tagging: Tagging{
			Enabled:        true,
			EmbedThumbnail: true,
			ArtworkMaxPx:   defaultArtworkMaxPx,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
