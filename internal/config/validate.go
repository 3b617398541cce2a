package config

import (
	"errors"
	"fmt"
	"net/url"

	"downie/internal/model"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateTagging(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNetwork() error {
	n := c.Network
	if n.Retries < 1 || n.Retries > maxRetriesLimit {
		return fmt.Errorf("network.retries must be between 1 and %d", maxRetriesLimit)
	}
	if n.BackoffInitialMS < 0 {
		return errors.New("network.backoff_initial_ms must be non-negative")
	}
	if n.BackoffMaxMS < n.BackoffInitialMS {
		return errors.New("network.backoff_max_ms must be at least network.backoff_initial_ms")
	}
	if n.AttemptTimeoutSeconds <= 0 {
		return errors.New("network.attempt_timeout_seconds must be positive")
	}
	if n.ExtractTimeoutSeconds <= 0 {
		return errors.New("network.extract_timeout_seconds must be positive")
	}
	if n.MaxConnections < 1 || n.MaxConnections > maxConnectionsLimit {
		return fmt.Errorf("network.max_connections must be between 1 and %d", maxConnectionsLimit)
	}
	if n.Proxy != "" {
		parsed, err := url.Parse(n.Proxy)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("network.proxy %q is not a valid proxy URL", model.RedactURL(n.Proxy))
		}
	}
	if n.LimitSpeed != "" {
		if _, err := model.ParseRate(n.LimitSpeed); err != nil {
			return fmt.Errorf("network.limit_speed: %w", err)
		}
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.TranscodeTimeoutSeconds <= 0 {
		return errors.New("tools.transcode_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.Workers < 1 || c.Subtitles.Workers > maxConnectionsLimit {
		return fmt.Errorf("subtitles.workers must be between 1 and %d", maxConnectionsLimit)
	}
	return nil
}

func (c *Config) validateTagging() error {
	if c.Tagging.ArtworkMaxPx < 0 {
		return errors.New("tagging.artwork_max_px must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}
