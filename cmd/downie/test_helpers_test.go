package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"downie/internal/config"
	"downie/internal/testsupport"
)

const (
	testVideoURL       = "https://www.youtube.com/watch?v=abc123"
	testUnsupportedURL = "https://unsupported.example/watch/1"
)

var testPayload = []byte("sample video payload")

const testVTT = "WEBVTT\n\n00:00:01.000 --> 00:00:02.500\nHello there\n\n00:00:03.000 --> 00:00:04.000\nGeneral Kenobi\n"

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     *httptest.Server
}

// setupCLITestEnv points tools.ytdlp at a stub that prints a canned info dict
// whose media and subtitle URLs are served locally. The stub reports an
// unsupported URL for testUnsupportedURL.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithRetries(1))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	mux := http.NewServeMux()
	mux.HandleFunc("/media/360.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(testPayload)
	})
	mux.HandleFunc("/subs/en.vtt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testVTT))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	info := map[string]any{
		"id":            "abc123",
		"title":         "Sample Clip",
		"uploader":      "Someone",
		"extractor_key": "Youtube",
		"formats": []map[string]any{
			{
				"format_id": "18",
				"ext":       "mp4",
				"width":     640,
				"height":    360,
				"vcodec":    "avc1",
				"acodec":    "mp4a",
				"filesize":  len(testPayload),
				"url":       server.URL + "/media/360.mp4",
				"protocol":  "http",
			},
		},
		"subtitles": map[string]any{
			"en": []map[string]any{{"ext": "vtt", "url": server.URL + "/subs/en.vtt"}},
		},
	}
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info: %v", err)
	}
	infoPath := filepath.Join(base, "info.json")
	testsupport.WriteBytes(t, infoPath, data)

	script := fmt.Sprintf(`for arg in "$@"; do last="$arg"; done
if [ "$last" = %q ]; then
  echo "ERROR: Unsupported URL: $last" >&2
  exit 1
fi
if [ "$1" = "--version" ]; then
  echo "2025.01.01"
  exit 0
fi
cat %q
`, testUnsupportedURL, infoPath)
	cfg.Tools.YtDLP = testsupport.StubBinary(t, filepath.Join(base, "bin"), "yt-dlp", script)
	cfg.Tools.FFmpeg = testsupport.StubBinary(t, filepath.Join(base, "bin"), "ffmpeg", "exit 0\n")
	cfg.Tools.FFprobe = testsupport.StubBinary(t, filepath.Join(base, "bin"), "ffprobe", "exit 0\n")
	cfg.History.Enabled = true
	cfg.Tagging.Enabled = false
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, server: server}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
