package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"

	"downie/internal/logging"
	"downie/internal/model"
	"downie/internal/services"
)

var commandContext = exec.CommandContext

// Option configures the yt-dlp adapter.
type Option func(*YtDLP)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(y *YtDLP) {
		if binary = strings.TrimSpace(binary); binary != "" {
			y.binary = binary
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(y *YtDLP) {
		if logger != nil {
			y.logger = logging.NewComponentLogger(logger, "extract")
		}
	}
}

// YtDLP extracts metadata by running `yt-dlp -J`.
type YtDLP struct {
	binary string
	logger *slog.Logger
}

var _ Extractor = (*YtDLP)(nil)

// NewYtDLP constructs the adapter using defaults.
func NewYtDLP(opts ...Option) *YtDLP {
	y := &YtDLP{binary: "yt-dlp", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// rawInfo mirrors the subset of yt-dlp's info dict that downie consumes.
// Single-format results carry the format fields at the top level.
type rawInfo struct {
	Format
	Type              string             `json:"_type"`
	Title             string             `json:"title"`
	VideoID           string             `json:"id"`
	Uploader          string             `json:"uploader"`
	Channel           string             `json:"channel"`
	ExtractorKey      string             `json:"extractor_key"`
	Extractor         string             `json:"extractor"`
	WebpageURL        string             `json:"webpage_url"`
	Thumbnail         string             `json:"thumbnail"`
	Duration          float64            `json:"duration"`
	Formats           []Format           `json:"formats"`
	Subtitles         map[string][]Track `json:"subtitles"`
	AutomaticCaptions map[string][]Track `json:"automatic_captions"`
}

// Extract runs yt-dlp and decodes its JSON output. Credentials are passed to
// the process arguments but never logged.
func (y *YtDLP) Extract(ctx context.Context, req Request) (*Info, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "extract", "prepare", "url required", nil)
	}

	args := y.buildArgs(req)
	y.logger.Debug("running yt-dlp",
		logging.String("binary", y.binary),
		logging.String("url", req.URL),
		logging.String("proxy", model.RedactURL(req.Proxy)),
		logging.Bool("authenticated", req.Username != ""),
		logging.Bool("cookies", req.CookiesFile != ""),
	)

	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, y.binary, args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrExtraction, "extract", "yt-dlp",
				fmt.Sprintf("%s not found; install yt-dlp or set tools.ytdlp", y.binary), err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.Canceled) {
				return nil, ctxErr
			}
			// An attempt deadline is transient and goes back to the retry loop.
			return nil, services.Wrap(services.ErrTransfer, "extract", "yt-dlp", "timed out", ctxErr)
		}
		return nil, classify(stderr.String(), err)
	}

	info, err := decodeInfo(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	y.logger.Info("extracted media",
		logging.String("platform", info.Platform),
		logging.String("title", info.Title),
		logging.Int("formats", len(info.Formats)),
		logging.Int("subtitle_languages", len(info.Subtitles)),
	)
	return info, nil
}

func (y *YtDLP) buildArgs(req Request) []string {
	args := []string{"-J", "--no-playlist", "--no-warnings", "--no-progress"}
	if req.Proxy != "" {
		args = append(args, "--proxy", req.Proxy)
	}
	if req.Username != "" {
		args = append(args, "--username", req.Username, "--password", req.Password)
	}
	if req.CookiesFile != "" {
		args = append(args, "--cookies", req.CookiesFile)
	}
	return append(args, "--", req.URL)
}

func decodeInfo(data []byte) (*Info, error) {
	var raw rawInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, services.Wrap(services.ErrExtraction, "extract", "decode", "invalid yt-dlp output", err)
	}
	if raw.Type == "playlist" || raw.Type == "multi_video" {
		return nil, services.Wrap(services.ErrExtraction, "extract", "decode",
			"URL resolves to a playlist; pass a single video URL", nil)
	}

	info := &Info{
		ID:                raw.VideoID,
		Title:             raw.Title,
		Uploader:          firstNonEmpty(raw.Uploader, raw.Channel),
		Platform:          firstNonEmpty(raw.ExtractorKey, raw.Extractor),
		WebpageURL:        raw.WebpageURL,
		Thumbnail:         raw.Thumbnail,
		Duration:          raw.Duration,
		Formats:           raw.Formats,
		Subtitles:         raw.Subtitles,
		AutomaticCaptions: raw.AutomaticCaptions,
	}
	if len(info.Formats) == 0 && raw.URL != "" {
		single := raw.Format
		if single.ID == "" {
			single.ID = "default"
		}
		info.Formats = []Format{single}
	}
	if info.Subtitles == nil {
		info.Subtitles = map[string][]Track{}
	}
	if info.AutomaticCaptions == nil {
		info.AutomaticCaptions = map[string][]Track{}
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
