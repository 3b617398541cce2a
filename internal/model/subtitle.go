package model

import (
	"fmt"
	"regexp"
	"strings"

	"downie/internal/urlcheck"
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// SubtitleConfig describes a subtitle download request.
type SubtitleConfig struct {
	URL            string
	OutputPath     string
	Languages      []string
	Formats        []string
	AutoGenerated  bool
	ConvertToSRT   bool
	FixEncoding    bool
	MergeSubtitles bool
}

// SubtitleOption customizes a SubtitleConfig during construction.
type SubtitleOption func(*SubtitleConfig)

// WithLanguages sets the ordered language list.
func WithLanguages(langs ...string) SubtitleOption {
	return func(c *SubtitleConfig) { c.Languages = append([]string(nil), langs...) }
}

// WithFormats sets the ordered format list.
func WithFormats(formats ...string) SubtitleOption {
	return func(c *SubtitleConfig) { c.Formats = append([]string(nil), formats...) }
}

// WithAutoGenerated allows machine captions when no human track exists.
func WithAutoGenerated(enabled bool) SubtitleOption {
	return func(c *SubtitleConfig) { c.AutoGenerated = enabled }
}

// WithConvertToSRT converts non-SRT tracks to SRT.
func WithConvertToSRT(enabled bool) SubtitleOption {
	return func(c *SubtitleConfig) { c.ConvertToSRT = enabled }
}

// WithFixEncoding repairs text encoding of fetched tracks.
func WithFixEncoding(enabled bool) SubtitleOption {
	return func(c *SubtitleConfig) { c.FixEncoding = enabled }
}

// WithMerge combines tracks into one file per final format.
func WithMerge(enabled bool) SubtitleOption {
	return func(c *SubtitleConfig) { c.MergeSubtitles = enabled }
}

// NewSubtitleConfig builds and validates a subtitle request. Languages default
// to ["en"] and formats to ["srt"]; both keep request order with duplicates removed.
func NewSubtitleConfig(rawURL, outputPath string, opts ...SubtitleOption) (SubtitleConfig, error) {
	cfg := SubtitleConfig{
		URL:        strings.TrimSpace(rawURL),
		OutputPath: strings.TrimSpace(outputPath),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.Languages = dedupe(cfg.Languages, false)
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}
	cfg.Formats = dedupe(cfg.Formats, true)
	if len(cfg.Formats) == 0 {
		cfg.Formats = []string{"srt"}
	}
	if err := cfg.Validate(); err != nil {
		return SubtitleConfig{}, err
	}
	return cfg, nil
}

// Validate checks the request without performing I/O.
func (c SubtitleConfig) Validate() error {
	if !urlcheck.Valid(c.URL) {
		return invalid("url", fmt.Sprintf("%q is not an absolute http(s) URL", c.URL))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return invalid("output_path", "must be set")
	}
	if len(c.Languages) == 0 {
		return invalid("languages", "at least one language is required")
	}
	for _, lang := range c.Languages {
		if !tokenPattern.MatchString(lang) {
			return invalid("languages", fmt.Sprintf("%q is not a language code", lang))
		}
	}
	if len(c.Formats) == 0 {
		return invalid("formats", "at least one format is required")
	}
	for _, format := range c.Formats {
		if !tokenPattern.MatchString(format) {
			return invalid("formats", fmt.Sprintf("%q is not a subtitle format", format))
		}
	}
	return nil
}

// SplitList splits a comma-separated flag value into trimmed, non-empty items.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
