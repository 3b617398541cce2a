package model

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"downie/internal/services"
	"downie/internal/urlcheck"
)

// DownloadConfig describes a single video download request.
type DownloadConfig struct {
	URL         string
	OutputPath  string
	Quality     string
	FormatID    string
	Processing  *ProcessingConfig
	Proxy       string
	LimitSpeed  string
	Username    string
	Password    string
	CookiesFile string
}

// DownloadOption customizes a DownloadConfig during construction.
type DownloadOption func(*DownloadConfig)

// WithQuality sets the quality token ("best", "worst", "1080p", "720", "4k").
func WithQuality(quality string) DownloadOption {
	return func(c *DownloadConfig) { c.Quality = strings.TrimSpace(quality) }
}

// WithFormatID selects an explicit format, overriding quality.
func WithFormatID(id string) DownloadOption {
	return func(c *DownloadConfig) { c.FormatID = strings.TrimSpace(id) }
}

// WithProcessing attaches a processing request run after the download.
func WithProcessing(p ProcessingConfig) DownloadOption {
	return func(c *DownloadConfig) {
		cp := p
		c.Processing = &cp
	}
}

// WithProxy routes extraction and transfer through a proxy URL.
func WithProxy(proxy string) DownloadOption {
	return func(c *DownloadConfig) { c.Proxy = strings.TrimSpace(proxy) }
}

// WithLimitSpeed caps transfer bandwidth ("1M", "500K").
func WithLimitSpeed(rate string) DownloadOption {
	return func(c *DownloadConfig) { c.LimitSpeed = strings.TrimSpace(rate) }
}

// WithCredentials sets the account used for extraction and transfer.
func WithCredentials(username, password string) DownloadOption {
	return func(c *DownloadConfig) {
		c.Username = username
		c.Password = password
	}
}

// WithCookiesFile points at a Netscape-format cookies file.
func WithCookiesFile(path string) DownloadOption {
	return func(c *DownloadConfig) { c.CookiesFile = strings.TrimSpace(path) }
}

// NewDownloadConfig builds and validates a download request. Quality defaults
// to "best".
func NewDownloadConfig(rawURL, outputPath string, opts ...DownloadOption) (DownloadConfig, error) {
	cfg := DownloadConfig{
		URL:        strings.TrimSpace(rawURL),
		OutputPath: strings.TrimSpace(outputPath),
		Quality:    QualityBest,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Quality == "" {
		cfg.Quality = QualityBest
	}
	if cfg.Processing != nil {
		normalized := cfg.Processing.Normalized()
		cfg.Processing = &normalized
	}
	if err := cfg.Validate(); err != nil {
		return DownloadConfig{}, err
	}
	return cfg, nil
}

// Validate checks the request without touching the network. The cookies file
// is the only filesystem input inspected.
func (c DownloadConfig) Validate() error {
	if !urlcheck.Valid(c.URL) {
		return invalid("url", fmt.Sprintf("%q is not an absolute http(s) URL", c.URL))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return invalid("output_path", "must be set")
	}
	if c.FormatID == "" {
		if _, err := ParseQuality(c.Quality); err != nil {
			return err
		}
	}
	if c.Proxy != "" {
		parsed, err := url.Parse(c.Proxy)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return invalid("proxy", fmt.Sprintf("%q is not a proxy URL", RedactURL(c.Proxy)))
		}
	}
	if c.LimitSpeed != "" {
		if _, err := ParseRate(c.LimitSpeed); err != nil {
			return invalid("limit_speed", err.Error())
		}
	}
	if (c.Username == "") != (c.Password == "") {
		return invalid("credentials", "username and password must be provided together")
	}
	if c.CookiesFile != "" {
		info, err := os.Stat(c.CookiesFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return invalid("cookies_file", fmt.Sprintf("%s does not exist", c.CookiesFile))
		case err != nil:
			return services.Wrap(services.ErrInvalidInput, "config", "cookies_file", "stat failed", err)
		case info.IsDir():
			return invalid("cookies_file", fmt.Sprintf("%s is a directory", c.CookiesFile))
		}
	}
	if c.Processing != nil {
		if err := c.Processing.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasCredentials reports whether a username/password pair is configured.
func (c DownloadConfig) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// RedactURL hides any password embedded in a URL so it can be logged.
func RedactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}
	return parsed.Redacted()
}

func invalid(field, message string) error {
	return services.Wrap(services.ErrInvalidInput, "config", field, message, nil)
}
