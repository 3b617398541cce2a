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
	c.normalizeNetwork()
	c.normalizeTools()
	c.normalizeSubtitles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.VideoDir) == "" {
		c.Paths.VideoDir = defaultVideoDir
	}
	if c.Paths.VideoDir, err = expandPath(c.Paths.VideoDir); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SubtitleDir) == "" {
		c.Paths.SubtitleDir = defaultSubtitleDir
	}
	if c.Paths.SubtitleDir, err = expandPath(c.Paths.SubtitleDir); err != nil {
		return fmt.Errorf("paths.subtitle_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeNetwork() {
	c.Network.Proxy = strings.TrimSpace(c.Network.Proxy)
	if c.Network.Proxy == "" {
		if value, ok := os.LookupEnv("DOWNIE_PROXY"); ok {
			c.Network.Proxy = strings.TrimSpace(value)
		}
	}
	c.Network.LimitSpeed = strings.TrimSpace(c.Network.LimitSpeed)
	if c.Network.LimitSpeed == "" {
		if value, ok := os.LookupEnv("DOWNIE_LIMIT_SPEED"); ok {
			c.Network.LimitSpeed = strings.TrimSpace(value)
		}
	}
	c.Network.UserAgent = strings.TrimSpace(c.Network.UserAgent)
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = defaultUserAgent
	}
	if c.Network.SegmentMinBytes <= 0 {
		c.Network.SegmentMinBytes = defaultSegmentMinBytes
	}
}

func (c *Config) normalizeTools() {
	c.Tools.YtDLP = defaultString(c.Tools.YtDLP, defaultYtDLPBinary)
	c.Tools.FFmpeg = defaultString(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = defaultString(c.Tools.FFprobe, defaultFFprobeBinary)
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Languages = normalizeList(c.Subtitles.Languages)
	if len(c.Subtitles.Languages) == 0 {
		c.Subtitles.Languages = []string{"en"}
	}
	c.Subtitles.Formats = normalizeList(c.Subtitles.Formats)
	if len(c.Subtitles.Formats) == 0 {
		c.Subtitles.Formats = []string{"srt"}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(defaultString(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaultString(c.Logging.Level, defaultLogLevel))
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

// normalizeList lowercases, trims, and deduplicates while keeping order.
func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
