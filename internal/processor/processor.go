package processor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"downie/internal/config"
	"downie/internal/logging"
	"downie/internal/media/ffprobe"
	"downie/internal/model"
	"downie/internal/services"
)

const component = "processor"

// Prober inspects a media file. It is optional; without one, outputs are not
// checked for stream layout.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Option configures a Processor.
type Option func(*Processor)

// WithTranscoder replaces the ffmpeg adapter.
func WithTranscoder(t Transcoder) Option {
	return func(p *Processor) {
		if t != nil {
			p.transcoder = t
		}
	}
}

// WithProber sets the stream inspector. A nil prober disables validation.
func WithProber(pr Prober) Option {
	return func(p *Processor) { p.prober = pr }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.base = logger
		}
	}
}

// Processor runs processing plans against downloaded files.
type Processor struct {
	transcoder Transcoder
	prober     Prober
	timeout    time.Duration
	base       *slog.Logger
	logger     *slog.Logger
}

// New builds a Processor using the configured ffmpeg and, when it resolves
// on PATH, ffprobe.
func New(cfg *config.Config, opts ...Option) *Processor {
	p := &Processor{
		timeout: cfg.TranscodeTimeout(),
		base:    logging.NewNop(),
	}
	if bin := strings.TrimSpace(cfg.Tools.FFprobe); bin != "" {
		if _, err := exec.LookPath(bin); err == nil {
			p.prober = ffprobe.Prober{Binary: bin}
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.base, component)
	if p.transcoder == nil {
		p.transcoder = NewFFmpeg(cfg.Tools.FFmpeg, p.base)
	}
	return p
}

// OutputPath returns where Process writes for the given input and config.
func OutputPath(input string, cfg model.ProcessingConfig) string {
	cfg = cfg.Normalized()
	dir := filepath.Dir(input)
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	if cfg.ExtractAudio {
		target := filepath.Join(dir, stem+"."+cfg.AudioFormat)
		if target != input {
			return target
		}
		ext = "." + cfg.AudioFormat
	} else {
		ext = containerExt(ext, cfg)
	}
	return filepath.Join(dir, stem+".processed"+ext)
}

// Process validates cfg, runs the plan, and returns the new file's path. An
// invalid config fails before anything touches the filesystem. A no-op
// config returns the input path unchanged.
func (p *Processor) Process(ctx context.Context, input string, cfg model.ProcessingConfig) (string, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if cfg.IsNoop() {
		return input, nil
	}

	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrInvalidInput, component, "process", "input file does not exist: "+input, err)
		}
		return "", services.Wrap(services.ErrProcessing, component, "process", "stat input", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInvalidInput, component, "process", "input is a directory: "+input, nil)
	}

	target := OutputPath(input, cfg)
	tmp := tempPath(target)
	plan, err := BuildPlan(input, tmp, cfg)
	if err != nil {
		return "", err
	}
	logger := logging.WithContext(ctx, p.logger)

	if p.prober != nil {
		if probe, err := p.prober.Inspect(ctx, input); err == nil {
			plan.Duration = probe.DurationSeconds()
		}
	}

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	logger.Info("processing started",
		logging.String("input", input),
		logging.String("output", target),
		logging.Any("steps", plan.Kinds()),
	)
	start := time.Now()
	if err := p.transcoder.Transcode(runCtx, plan); err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrProcessing, component, "transcode",
				fmt.Sprintf("timed out after %s", p.timeout), err)
		}
		return "", err
	}

	if err := p.verify(ctx, tmp, plan); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", services.Wrap(services.ErrProcessing, component, "finalize", "rename output", err)
	}

	logger.Info("processing complete",
		logging.String("output", target),
		logging.Duration("elapsed", time.Since(start)),
	)
	return target, nil
}

func (p *Processor) verify(ctx context.Context, path string, plan Plan) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrProcessing, component, "verify", "transcoder produced no output", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrProcessing, component, "verify", "transcoder produced an empty file", nil)
	}
	if p.prober == nil {
		return nil
	}
	probe, err := p.prober.Inspect(ctx, path)
	if err != nil {
		return services.Wrap(services.ErrProcessing, component, "verify", "inspect output", err)
	}
	switch {
	case plan.AudioOnly && (probe.HasVideo() || !probe.HasAudio()):
		return services.Wrap(services.ErrProcessing, component, "verify", "extracted file is not audio-only", nil)
	case plan.NoAudio && probe.HasAudio():
		return services.Wrap(services.ErrProcessing, component, "verify", "output still carries audio", nil)
	}
	return nil
}

// tempPath keeps the target extension last so ffmpeg can infer the muxer.
func tempPath(target string) string {
	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)
	return filepath.Join(dir, "."+stem+"."+uuid.NewString()+".tmp"+ext)
}
