package processor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"downie/internal/logging"
	"downie/internal/services"
)

var commandContext = exec.CommandContext

const stderrTailLines = 20

// Transcoder executes a plan.
type Transcoder interface {
	Transcode(ctx context.Context, plan Plan) error
}

// CommandError carries the tail of a failed tool's stderr.
type CommandError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// FFmpeg runs plans through one ffmpeg invocation each.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

var _ Transcoder = (*FFmpeg)(nil)

// NewFFmpeg constructs the adapter. An empty binary means "ffmpeg" on PATH.
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Transcode runs ffmpeg and logs sampled progress from its -progress stream.
func (f *FFmpeg) Transcode(ctx context.Context, plan Plan) error {
	binary, err := exec.LookPath(f.binary)
	if err != nil {
		return services.Wrap(services.ErrProcessing, component, "ffmpeg",
			fmt.Sprintf("ffmpeg binary %q not found; install ffmpeg to enable processing", f.binary), err)
	}

	args := plan.Args()
	f.logger.Debug("executing ffmpeg", logging.String("args", strings.Join(args, " ")))

	var stderr bytes.Buffer
	cmd := commandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrProcessing, component, "ffmpeg", "attach stdout", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrProcessing, component, "ffmpeg", "ffmpeg binary not found", err)
		}
		return services.Wrap(services.ErrProcessing, component, "ffmpeg", "start", err)
	}
	f.readProgress(stdout, plan.Duration)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrProcessing, component, "ffmpeg", "transcode failed",
			&CommandError{Tool: "ffmpeg", Stderr: tail(stderr.String(), stderrTailLines), Err: err})
	}
	return nil
}

// readProgress consumes key=value lines until EOF.
func (f *FFmpeg) readProgress(r io.Reader, duration float64) {
	sampler := logging.NewProgressSampler(10)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "out_time_us" || duration <= 0 {
			continue
		}
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil || micros < 0 {
			continue
		}
		percent := min(float64(micros)/1e6/duration*100, 100)
		if sampler.ShouldLog(percent, "transcode") {
			f.logger.Info("transcode progress", logging.Float64("percent", percent))
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

func tail(s string, lines int) string {
	parts := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
