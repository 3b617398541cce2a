package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"downie/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Backoff is disabled so retry paths run instantly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.VideoDir = filepath.Join(base, "downloads")
	cfgVal.Paths.SubtitleDir = filepath.Join(base, "subtitles")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")
	cfgVal.Network.BackoffInitialMS = 0
	cfgVal.Network.BackoffMaxMS = 0
	cfgVal.Network.AttemptTimeoutSeconds = 30
	cfgVal.Network.ExtractTimeoutSeconds = 30

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRetries overrides the retry budget.
func WithRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Network.Retries = n
	}
}

// WithStubbedBinaries writes stub executables that exit successfully and
// points the tool settings at them. If names is empty, yt-dlp, ffmpeg, and
// ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			path := StubBinary(b.t, binDir, name, "exit 0\n")
			switch name {
			case "yt-dlp":
				b.cfg.Tools.YtDLP = path
			case "ffmpeg":
				b.cfg.Tools.FFmpeg = path
			case "ffprobe":
				b.cfg.Tools.FFprobe = path
			}
		}
	}
}

// StubBinary writes an executable shell script named name into dir and returns
// its path. The body runs under /bin/sh with the original arguments.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.VideoDir)
}
