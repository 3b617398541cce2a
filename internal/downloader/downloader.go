package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"downie/internal/config"
	"downie/internal/extract"
	"downie/internal/fileutil"
	"downie/internal/logging"
	"downie/internal/model"
	"downie/internal/preflight"
	"downie/internal/retry"
	"downie/internal/services"
	"downie/internal/transfer"
	"downie/internal/urlcheck"
)

const component = "downloader"

// Transferer moves one format onto disk in a single attempt.
type Transferer interface {
	Fetch(ctx context.Context, job transfer.Job) (transfer.Outcome, error)
}

var _ Transferer = (*transfer.Engine)(nil)

// Option configures a Downloader.
type Option func(*Downloader)

// WithExtractor replaces the yt-dlp extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(d *Downloader) {
		if e != nil {
			d.extractor = e
		}
	}
}

// WithTransferer replaces the HTTP transfer engine.
func WithTransferer(t Transferer) Option {
	return func(d *Downloader) {
		if t != nil {
			d.transfer = t
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.base = logger
		}
	}
}

// WithProgress registers a callback for transfer progress.
func WithProgress(fn func(transfer.Progress)) Option {
	return func(d *Downloader) { d.progress = fn }
}

// Downloader orchestrates extraction, format selection, and transfer.
type Downloader struct {
	extractor      extract.Extractor
	transfer       Transferer
	policy         retry.Policy
	extractTimeout time.Duration
	base           *slog.Logger
	logger         *slog.Logger
	progress       func(transfer.Progress)
}

// New builds a Downloader from configuration. The retry budget, backoff, and
// timeouts come from cfg.Network.
func New(cfg *config.Config, opts ...Option) *Downloader {
	d := &Downloader{
		policy: retry.Policy{
			Attempts:       cfg.Network.Retries,
			Initial:        cfg.BackoffInitial(),
			Max:            cfg.BackoffMax(),
			AttemptTimeout: cfg.AttemptTimeout(),
		},
		extractTimeout: cfg.ExtractTimeout(),
		base:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.base, component)
	if d.extractor == nil {
		d.extractor = extract.NewYtDLP(extract.WithBinary(cfg.Tools.YtDLP), extract.WithLogger(d.base))
	}
	if d.transfer == nil {
		d.transfer = transfer.NewEngine(transfer.Options{
			MaxConnections:  cfg.Network.MaxConnections,
			SegmentMinBytes: cfg.Network.SegmentMinBytes,
			UserAgent:       cfg.Network.UserAgent,
			Logger:          d.base,
		})
	}
	return d
}

// Download runs one request to completion. It never returns an error value;
// DownloadTime covers the whole call.
func (d *Downloader) Download(ctx context.Context, cfg model.DownloadConfig) model.DownloadResult {
	start := time.Now()
	logger := logging.WithContext(ctx, d.logger)

	path, size, media, err := d.download(ctx, logger, cfg)
	if err != nil {
		logging.WarnWithContext(logger, "download failed", "download_failed",
			logging.String(logging.FieldURL, model.RedactURL(cfg.URL)),
			logging.String("kind", string(services.KindOf(err))),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.String(logging.FieldImpact, "no file was produced"),
		)
		return model.Failed(err)
	}

	elapsed := time.Since(start)
	logger.Info("download complete",
		logging.String("path", path),
		logging.String("size", humanize.IBytes(uint64(size))),
		logging.Duration("elapsed", elapsed),
		logging.String("format_id", media.FormatID),
	)
	return model.Succeeded(path, size, elapsed, media)
}

func (d *Downloader) download(ctx context.Context, logger *slog.Logger, cfg model.DownloadConfig) (string, int64, model.MediaInfo, error) {
	if err := cfg.Validate(); err != nil {
		return "", 0, model.MediaInfo{}, err
	}
	if err := prepareOutputDir(cfg.OutputPath); err != nil {
		return "", 0, model.MediaInfo{}, err
	}

	info, err := d.Inspect(ctx, cfg)
	if err != nil {
		return "", 0, model.MediaInfo{}, err
	}

	format, err := SelectFormat(info, cfg.Quality, cfg.FormatID)
	if err != nil {
		return "", 0, model.MediaInfo{}, err
	}
	logger.Info("format selected",
		logging.String("format_id", format.ID),
		logging.String("label", format.Label()),
		logging.String("platform", info.Platform),
	)

	var limit int64
	if strings.TrimSpace(cfg.LimitSpeed) != "" {
		limit, err = model.ParseRate(cfg.LimitSpeed)
		if err != nil {
			return "", 0, model.MediaInfo{}, services.Wrap(services.ErrInvalidInput, component, "limit_speed", "parse", err)
		}
	}

	dest := filepath.Join(cfg.OutputPath, FileName(info, format))
	job := transfer.Job{
		URL:          format.URL,
		Origin:       cfg.URL,
		Headers:      format.Headers,
		Dest:         dest,
		ExpectedSize: format.Filesize,
		Proxy:        cfg.Proxy,
		LimitSpeed:   limit,
		Username:     cfg.Username,
		Password:     cfg.Password,
		CookiesFile:  cfg.CookiesFile,
		Progress:     d.progressFunc(logger),
	}

	var outcome transfer.Outcome
	err = retry.Do(ctx, d.policy, nil, d.notify(logger, "transfer"), func(ctx context.Context, attempt int) error {
		var fetchErr error
		outcome, fetchErr = d.transfer.Fetch(ctx, job)
		return fetchErr
	})
	if err != nil {
		return "", 0, model.MediaInfo{}, err
	}

	media := model.MediaInfo{
		ID:        info.ID,
		Title:     info.Title,
		Uploader:  info.Uploader,
		Platform:  info.Platform,
		Thumbnail: info.Thumbnail,
		FormatID:  format.ID,
		Ext:       filepath.Ext(outcome.Path),
	}
	return outcome.Path, outcome.Size, media, nil
}

// Inspect extracts metadata for cfg.URL under the retry policy, using the
// extraction timeout per attempt.
func (d *Downloader) Inspect(ctx context.Context, cfg model.DownloadConfig) (*extract.Info, error) {
	if !urlcheck.Valid(cfg.URL) {
		return nil, services.Wrap(services.ErrInvalidInput, component, "inspect",
			fmt.Sprintf("%q is not an absolute http(s) URL", cfg.URL), nil)
	}
	logger := logging.WithContext(ctx, d.logger)
	logger.Debug("inspecting source",
		logging.String("proxy", model.RedactURL(cfg.Proxy)),
		logging.Bool("credentials", cfg.HasCredentials()),
		logging.Bool("cookies", cfg.CookiesFile != ""),
	)
	req := extract.Request{
		URL:         cfg.URL,
		Proxy:       cfg.Proxy,
		Username:    cfg.Username,
		Password:    cfg.Password,
		CookiesFile: cfg.CookiesFile,
	}

	policy := d.policy
	policy.AttemptTimeout = d.extractTimeout
	var info *extract.Info
	err := retry.Do(ctx, policy, nil, d.notify(logger, "extract"), func(ctx context.Context, attempt int) error {
		var extractErr error
		info, extractErr = d.extractor.Extract(ctx, req)
		return extractErr
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Downloader) notify(logger *slog.Logger, stage string) retry.Notify {
	return func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "attempt failed; retrying", stage+"_retry",
			logging.String("stage", stage),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "download delayed"),
		)
	}
}

func (d *Downloader) progressFunc(logger *slog.Logger) func(transfer.Progress) {
	sampler := logging.NewProgressSampler(10)
	return func(p transfer.Progress) {
		if d.progress != nil {
			d.progress(p)
		}
		percent := -1.0
		if p.Total > 0 {
			percent = float64(p.Downloaded) / float64(p.Total) * 100
		}
		if !sampler.ShouldLog(percent, "transfer") {
			return
		}
		logger.Debug("transfer progress",
			logging.Float64("percent", percent),
			logging.String("downloaded", humanize.IBytes(uint64(p.Downloaded))),
		)
	}
}

func prepareOutputDir(dir string) error {
	if err := fileutil.EnsureDir(dir); err != nil {
		return services.Wrap(services.ErrInvalidInput, component, "output", "create output directory", err)
	}
	if check := preflight.CheckDirectoryAccess("output", dir); !check.Passed {
		return services.Wrap(services.ErrInvalidInput, component, "output", check.Detail, nil)
	}
	return nil
}

func hintFor(err error) string {
	switch services.KindOf(err) {
	case services.KindInvalidInput:
		return "check the URL and options"
	case services.KindUnsupportedPlatform:
		return "the site is not supported by the extractor"
	case services.KindAuthentication:
		return "supply --username/--password or --cookies"
	case services.KindFormatNotFound, services.KindNoFormatsAvailable:
		return "run 'downie video formats' to list available formats"
	case services.KindExtraction:
		return "update yt-dlp or check the URL"
	case services.KindTransfer:
		return "check network connectivity or proxy settings"
	default:
		return "check logs for details"
	}
}
