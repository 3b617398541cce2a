package subtitles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"downie/internal/config"
	"downie/internal/extract"
	"downie/internal/fileutil"
	"downie/internal/logging"
	"downie/internal/model"
	"downie/internal/retry"
	"downie/internal/services"
	"downie/internal/textutil"
	"downie/internal/transfer"
)

// File is one subtitle file written by Download.
type File struct {
	Path     string
	Language string
	Format   string
	Auto     bool
	Warnings []error
}

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

// WithHTTPClient replaces the client used to fetch track bodies.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
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

// Downloader fetches and normalizes subtitle tracks for one URL per call.
type Downloader struct {
	extractor      extract.Extractor
	client         *http.Client
	policy         retry.Policy
	extractTimeout time.Duration
	workers        int
	proxy          string
	userAgent      string
	base           *slog.Logger
	logger         *slog.Logger
}

// New builds a Downloader from configuration.
func New(cfg *config.Config, opts ...Option) *Downloader {
	d := &Downloader{
		policy: retry.Policy{
			Attempts:       cfg.Network.Retries,
			Initial:        cfg.BackoffInitial(),
			Max:            cfg.BackoffMax(),
			AttemptTimeout: cfg.AttemptTimeout(),
		},
		extractTimeout: cfg.ExtractTimeout(),
		workers:        max(cfg.Subtitles.Workers, 1),
		proxy:          cfg.Network.Proxy,
		userAgent:      cfg.Network.UserAgent,
		base:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.base, component)
	if d.extractor == nil {
		d.extractor = extract.NewYtDLP(extract.WithBinary(cfg.Tools.YtDLP), extract.WithLogger(d.base))
	}
	return d
}

// Download resolves cfg.URL and writes every available (language, format)
// pair into cfg.OutputPath. Results follow request order: languages outer,
// formats inner. Missing tracks are skipped; only invalid input, extraction
// failure, or cancellation fail the call.
func (d *Downloader) Download(ctx context.Context, cfg model.SubtitleConfig) ([]File, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDir(cfg.OutputPath); err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, component, "output", "create output directory", err)
	}
	logger := logging.WithContext(ctx, d.logger)

	info, err := d.inspect(ctx, logger, cfg.URL)
	if err != nil {
		return nil, err
	}
	client, err := d.httpClient()
	if err != nil {
		return nil, err
	}

	stem := baseName(info)
	results := make([]*File, len(cfg.Languages)*len(cfg.Formats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for li, lang := range cfg.Languages {
		for fi, format := range cfg.Formats {
			idx := li*len(cfg.Formats) + fi
			g.Go(func() error {
				file, err := d.fetchOne(gctx, logger, client, info, cfg, stem, lang, format)
				if err != nil {
					if gctx.Err() != nil {
						return err
					}
					logging.WarnWithContext(logger, "subtitle track skipped", "subtitle_skipped",
						logging.String("language", lang),
						logging.String("format", format),
						logging.Error(err),
						logging.String(logging.FieldImpact, "track omitted from results"),
					)
					return nil
				}
				results[idx] = file
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]File, 0, len(results))
	for _, file := range results {
		if file != nil {
			files = append(files, *file)
		}
	}
	if cfg.MergeSubtitles {
		files = d.merge(logger, files, cfg.OutputPath, stem)
	}
	logger.Info("subtitles complete",
		logging.Int("requested", len(results)),
		logging.Int("written", len(files)),
	)
	return files, nil
}

func (d *Downloader) inspect(ctx context.Context, logger *slog.Logger, url string) (*extract.Info, error) {
	policy := d.policy
	policy.AttemptTimeout = d.extractTimeout
	var info *extract.Info
	err := retry.Do(ctx, policy, nil, d.notify(logger, "extract"), func(ctx context.Context, attempt int) error {
		var extractErr error
		info, extractErr = d.extractor.Extract(ctx, extract.Request{URL: url, Proxy: d.proxy})
		return extractErr
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Downloader) httpClient() (*http.Client, error) {
	if d.client != nil {
		return d.client, nil
	}
	return transfer.NewHTTPClient(transfer.ClientOptions{Proxy: d.proxy, MaxConnections: d.workers})
}

func (d *Downloader) fetchOne(ctx context.Context, logger *slog.Logger, client *http.Client, info *extract.Info, cfg model.SubtitleConfig, stem, lang, format string) (*File, error) {
	sel, ok := Resolve(info, lang, format, cfg.AutoGenerated)
	if !ok {
		logger.Debug("no subtitle track", logging.String("language", lang), logging.String("format", format))
		return nil, nil
	}

	var data []byte
	err := retry.Do(ctx, d.policy, nil, d.notify(logger, "subtitle"), func(ctx context.Context, attempt int) error {
		var fetchErr error
		data, fetchErr = fetchTrack(ctx, client, d.userAgent, sel.Track)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	file := &File{Language: lang, Format: sel.Format, Auto: sel.Auto}
	if cfg.FixEncoding {
		fixed, warn := FixEncoding(data, sel.Key)
		data = fixed
		if warn != nil {
			file.Warnings = append(file.Warnings, warn)
			logging.WarnWithContext(logger, "subtitle encoding not repaired", "encoding_repair",
				logging.String("language", lang),
				logging.Error(warn),
				logging.String(logging.FieldImpact, "original bytes kept"),
			)
		}
	}

	name := stem + "." + textutil.SanitizeToken(lang) + "." + sel.Format
	if cfg.ConvertToSRT && sel.Format != "srt" && Convertible(sel.Format) {
		converted, convErr := ConvertToSRT(data, sel.Format)
		if convErr != nil {
			file.Warnings = append(file.Warnings, convErr)
			logging.WarnWithContext(logger, "subtitle conversion failed", "subtitle_convert",
				logging.String("language", lang),
				logging.String("format", sel.Format),
				logging.Error(convErr),
				logging.String(logging.FieldImpact, "original format kept"),
			)
		} else {
			data = converted
			name += ".srt"
			file.Format = "srt"
		}
	}

	file.Path = filepath.Join(cfg.OutputPath, name)
	if err := fileutil.WriteFileAtomic(file.Path, data, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransfer, component, "write", file.Path, err)
	}
	logger.Info("subtitle written",
		logging.String("path", file.Path),
		logging.String("language", lang),
		logging.String("track", sel.Key),
		logging.Bool("auto", sel.Auto),
	)
	return file, nil
}

// merge replaces each group of two or more files sharing a final format with
// one merged file placed where the group's first member was.
func (d *Downloader) merge(logger *slog.Logger, files []File, dir, stem string) []File {
	groups := make(map[string][]int)
	var order []string
	for i, file := range files {
		if _, ok := groups[file.Format]; !ok {
			order = append(order, file.Format)
		}
		groups[file.Format] = append(groups[file.Format], i)
	}

	replaced := make(map[int]*File)
	dropped := make(map[int]bool)
	for _, format := range order {
		members := groups[format]
		if len(members) < 2 {
			continue
		}
		if !Mergeable(format) {
			logging.WarnWithContext(logger, "subtitle format cannot be merged", "subtitle_merge",
				logging.String("format", format),
				logging.String(logging.FieldImpact, "files left unmerged"),
				logging.String(logging.FieldErrorHint, "enable SRT conversion to merge"),
			)
			continue
		}
		merged, err := mergeGroup(files, members, dir, stem, format)
		if err != nil {
			logging.WarnWithContext(logger, "subtitle merge failed", "subtitle_merge",
				logging.String("format", format),
				logging.Error(err),
				logging.String(logging.FieldImpact, "files left unmerged"),
			)
			continue
		}
		for _, idx := range members {
			if err := os.Remove(files[idx].Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Debug("remove merged source", logging.String("path", files[idx].Path), logging.Error(err))
			}
			dropped[idx] = true
		}
		replaced[members[0]] = merged
		logger.Info("subtitles merged", logging.String("path", merged.Path), logging.Int("tracks", len(members)))
	}

	out := make([]File, 0, len(files))
	for i, file := range files {
		if m, ok := replaced[i]; ok {
			out = append(out, *m)
			continue
		}
		if !dropped[i] {
			out = append(out, file)
		}
	}
	return out
}

func mergeGroup(files []File, members []int, dir, stem, format string) (*File, error) {
	tracks := make([]Track, 0, len(members))
	merged := &File{Format: format}
	langs := make([]string, 0, len(members))
	for _, idx := range members {
		file := files[idx]
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Path, err)
		}
		cues, err := Parse(data, file.Format)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, Track{Language: file.Language, Cues: cues})
		langs = append(langs, file.Language)
		merged.Auto = merged.Auto || file.Auto
		merged.Warnings = append(merged.Warnings, file.Warnings...)
	}
	data, err := Merge(tracks, format)
	if err != nil {
		return nil, err
	}
	merged.Language = strings.Join(langs, ",")
	merged.Path = filepath.Join(dir, stem+".merged."+format)
	if err := fileutil.WriteFileAtomic(merged.Path, data, 0o644); err != nil {
		return nil, err
	}
	return merged, nil
}

func (d *Downloader) notify(logger *slog.Logger, stage string) retry.Notify {
	return func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "attempt failed; retrying", stage+"_retry",
			logging.String("stage", stage),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "subtitles delayed"),
		)
	}
}

// baseName is the sanitized title, falling back to the media id.
func baseName(info *extract.Info) string {
	if name := textutil.SanitizeFileName(info.Title); name != "" {
		return name
	}
	if name := textutil.SanitizeFileName(info.ID); name != "" {
		return name
	}
	return "subtitles"
}
