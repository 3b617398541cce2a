package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"downie/internal/config"
	"downie/internal/downloader"
	"downie/internal/fileutil"
	"downie/internal/history"
	"downie/internal/logging"
	"downie/internal/model"
	"downie/internal/processor"
	"downie/internal/services"
	"downie/internal/subtitles"
	"downie/internal/tagging"
)

// VideoDownloader fetches one video.
type VideoDownloader interface {
	Download(ctx context.Context, cfg model.DownloadConfig) model.DownloadResult
}

// MediaProcessor transforms a downloaded file and returns the new path.
type MediaProcessor interface {
	Process(ctx context.Context, input string, cfg model.ProcessingConfig) (string, error)
}

// AudioTagger writes metadata into an audio file.
type AudioTagger interface {
	Tag(ctx context.Context, path string, meta tagging.Metadata) error
}

// Recorder archives completed downloads.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) (history.Entry, error)
}

// SubtitleDownloader fetches subtitle tracks.
type SubtitleDownloader interface {
	Download(ctx context.Context, cfg model.SubtitleConfig) ([]subtitles.File, error)
}

var (
	_ VideoDownloader    = (*downloader.Downloader)(nil)
	_ MediaProcessor     = (*processor.Processor)(nil)
	_ AudioTagger        = (*tagging.Tagger)(nil)
	_ Recorder           = (*history.Store)(nil)
	_ SubtitleDownloader = (*subtitles.Downloader)(nil)
)

// Option configures a Runner.
type Option func(*Runner)

// WithVideoDownloader replaces the video downloader.
func WithVideoDownloader(d VideoDownloader) Option {
	return func(r *Runner) { r.video = d }
}

// WithProcessor replaces the media processor.
func WithProcessor(p MediaProcessor) Option {
	return func(r *Runner) { r.processor = p }
}

// WithTagger replaces the audio tagger. A nil tagger disables tagging.
func WithTagger(t AudioTagger) Option {
	return func(r *Runner) {
		r.tagger = t
		r.taggerSet = true
	}
}

// WithHistory records successful downloads in rec.
func WithHistory(rec Recorder) Option {
	return func(r *Runner) { r.history = rec }
}

// WithSubtitleDownloader replaces the subtitle downloader.
func WithSubtitleDownloader(d SubtitleDownloader) Option {
	return func(r *Runner) { r.subs = d }
}

// WithLogger attaches a logger, shared with default collaborators.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.base = logger
		}
	}
}

// Runner wires the downloaders, processor, tagger, and history together.
type Runner struct {
	video     VideoDownloader
	processor MediaProcessor
	tagger    AudioTagger
	taggerSet bool
	history   Recorder
	subs      SubtitleDownloader
	base      *slog.Logger
	logger    *slog.Logger
}

// New builds a Runner. Collaborators not supplied through options are
// constructed from cfg; tagging is enabled by cfg.Tagging.Enabled. History
// is recorded only when WithHistory is given.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{base: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.base, "workflow")
	if r.video == nil {
		r.video = downloader.New(cfg, downloader.WithLogger(r.base))
	}
	if r.processor == nil {
		r.processor = processor.New(cfg, processor.WithLogger(r.base))
	}
	if !r.taggerSet && cfg.Tagging.Enabled {
		r.tagger = tagging.New(cfg, tagging.WithLogger(r.base))
	}
	if r.subs == nil {
		r.subs = subtitles.New(cfg, subtitles.WithLogger(r.base))
	}
	return r
}

// RunVideo downloads req and applies its processing request. A processing
// failure turns the result into a failure carrying the processing error; the
// downloaded file stays on disk.
func (r *Runner) RunVideo(ctx context.Context, req model.DownloadConfig) model.DownloadResult {
	ctx = withRequest(ctx, req.URL)
	logger := logging.WithContext(ctx, r.logger)

	result := r.video.Download(ctx, req)
	if !result.Success {
		return result
	}

	processed := false
	if req.Processing != nil && !req.Processing.Normalized().IsNoop() {
		out, err := r.processor.Process(ctx, result.FilePath, *req.Processing)
		if err != nil {
			logging.ErrorWithContext(logger, "processing failed", "processing_failed",
				logging.String("input", result.FilePath),
				logging.String("kind", string(services.KindOf(err))),
				logging.Error(err),
				logging.String(logging.FieldImpact, "downloaded file kept unprocessed"),
			)
			return model.Failed(err)
		}
		size, err := fileutil.Size(out)
		if err != nil {
			return model.Failed(services.Wrap(services.ErrProcessing, "workflow", "process", "stat output", err))
		}
		result.ReplaceFile(out, size)
		processed = true
	}

	if processed && r.tagger != nil && tagging.Supported(result.FilePath) {
		meta := tagging.Metadata{
			Title:        result.Media.Title,
			Artist:       result.Media.Uploader,
			Album:        result.Media.Platform,
			SourceURL:    req.URL,
			ThumbnailURL: result.Media.Thumbnail,
		}
		if err := r.tagger.Tag(ctx, result.FilePath, meta); err != nil {
			logging.WarnWithContext(logger, "tagging failed", "tagging_failed",
				logging.String("path", result.FilePath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "audio saved without tags"),
			)
		}
	}

	r.record(ctx, logger, req, result, processed)
	return result
}

// RunSubtitles downloads subtitles for req.
func (r *Runner) RunSubtitles(ctx context.Context, req model.SubtitleConfig) ([]subtitles.File, error) {
	ctx = withRequest(ctx, req.URL)
	return r.subs.Download(ctx, req)
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, req model.DownloadConfig, result model.DownloadResult, processed bool) {
	if r.history == nil {
		return
	}
	requestID, _ := services.RequestIDFromContext(ctx)
	_, err := r.history.Record(ctx, history.Entry{
		RequestID:    requestID,
		URL:          model.RedactURL(req.URL),
		Platform:     result.Media.Platform,
		Title:        result.Media.Title,
		FormatID:     result.Media.FormatID,
		FilePath:     result.FilePath,
		FileSize:     result.FileSize,
		DownloadTime: result.DownloadTime,
		Processed:    processed,
	})
	if err != nil {
		logging.WarnWithContext(logger, "history not recorded", "history_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "download missing from history"),
		)
	}
}

func withRequest(ctx context.Context, url string) context.Context {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return services.WithSourceURL(ctx, model.RedactURL(url))
}
