package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output and state locations.
type Paths struct {
	VideoDir    string `toml:"video_dir"`
	SubtitleDir string `toml:"subtitle_dir"`
	LogDir      string `toml:"log_dir"`
	HistoryDB   string `toml:"history_db"`
}

// Network contains transfer, retry, and timeout settings.
type Network struct {
	Retries               int    `toml:"retries"`
	BackoffInitialMS      int    `toml:"backoff_initial_ms"`
	BackoffMaxMS          int    `toml:"backoff_max_ms"`
	AttemptTimeoutSeconds int    `toml:"attempt_timeout_seconds"`
	ExtractTimeoutSeconds int    `toml:"extract_timeout_seconds"`
	MaxConnections        int    `toml:"max_connections"`
	SegmentMinBytes       int64  `toml:"segment_min_bytes"`
	UserAgent             string `toml:"user_agent"`
	Proxy                 string `toml:"proxy"`
	LimitSpeed            string `toml:"limit_speed"`
}

// Tools names the external binaries used for extraction and transcoding.
type Tools struct {
	YtDLP                   string `toml:"ytdlp"`
	FFmpeg                  string `toml:"ffmpeg"`
	FFprobe                 string `toml:"ffprobe"`
	TranscodeTimeoutSeconds int    `toml:"transcode_timeout_seconds"`
}

// Subtitles contains defaults for subtitle downloads.
type Subtitles struct {
	Languages     []string `toml:"languages"`
	Formats       []string `toml:"formats"`
	Workers       int      `toml:"workers"`
	AutoGenerated bool     `toml:"auto_generated"`
	ConvertSRT    bool     `toml:"convert_srt"`
	FixEncoding   bool     `toml:"fix_encoding"`
	Merge         bool     `toml:"merge"`
}

// Tagging controls ID3 tagging of extracted audio.
type Tagging struct {
	Enabled        bool `toml:"enabled"`
	EmbedThumbnail bool `toml:"embed_thumbnail"`
	ArtworkMaxPx   int  `toml:"artwork_max_px"`
}

// History controls the download archive.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for downie.
//
// Configuration sections by subsystem:
//   - Paths: default output directories, log directory, history database
//   - Network: retry budget, backoff, timeouts, segment concurrency, proxy
//   - Tools: yt-dlp, ffmpeg, and ffprobe binaries
//   - Subtitles: default languages/formats and fetch concurrency
//   - Tagging: ID3 tags and cover art for extracted audio
//   - History: download archive toggle
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Network   Network   `toml:"network"`
	Tools     Tools     `toml:"tools"`
	Subtitles Subtitles `toml:"subtitles"`
	Tagging   Tagging   `toml:"tagging"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/downie/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("downie.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the history database parent.
// Output directories are created on demand by the downloaders.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.History.Enabled && c.Paths.HistoryDB != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.HistoryDB))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// BackoffInitial returns the delay before the first retry.
func (c *Config) BackoffInitial() time.Duration {
	return time.Duration(c.Network.BackoffInitialMS) * time.Millisecond
}

// BackoffMax returns the cap applied to exponential backoff.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Network.BackoffMaxMS) * time.Millisecond
}

// AttemptTimeout bounds a single transfer attempt.
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Network.AttemptTimeoutSeconds) * time.Second
}

// ExtractTimeout bounds a single extraction invocation.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.Network.ExtractTimeoutSeconds) * time.Second
}

// TranscodeTimeout bounds a single transcoder invocation.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Tools.TranscodeTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
