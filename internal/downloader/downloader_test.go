package downloader_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"downie/internal/config"
	"downie/internal/downloader"
	"downie/internal/extract"
	"downie/internal/model"
	"downie/internal/services"
	"downie/internal/testsupport"
)

type fakeExtractor struct {
	info     *extract.Info
	failures []error
	calls    atomic.Int32
	lastReq  extract.Request
}

func (f *fakeExtractor) Extract(_ context.Context, req extract.Request) (*extract.Info, error) {
	n := int(f.calls.Add(1))
	f.lastReq = req
	if n <= len(f.failures) {
		return nil, f.failures[n-1]
	}
	return f.info, nil
}

type mediaServer struct {
	body      []byte
	failFirst int
	status    int
	hits      atomic.Int32
	sawAuth   atomic.Bool
}

func (s *mediaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.hits.Add(1))
	if r.Header.Get("Authorization") != "" {
		s.sawAuth.Store(true)
	}
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	if n <= s.failFirst {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write(s.body)
}

func newInfo(base string) *extract.Info {
	return &extract.Info{
		ID:        "abc123",
		Title:     "Sample Clip",
		Uploader:  "Someone",
		Platform:  "Youtube",
		Thumbnail: base + "/thumb.jpg",
		Formats: []extract.Format{
			{ID: "18", Ext: "mp4", Height: 360, VCodec: "avc1", ACodec: "mp4a", URL: base + "/360", Protocol: "https"},
			{ID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a", URL: base + "/720", Protocol: "https"},
			{ID: "137", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "mp4a", URL: base + "/1080", Protocol: "https"},
		},
	}
}

func newDownloader(t *testing.T, cfg *config.Config, ex extract.Extractor) *downloader.Downloader {
	t.Helper()
	cfg.Network.MaxConnections = 1
	return downloader.New(cfg, downloader.WithExtractor(ex))
}

func TestDownloadSelectsQualityAndNamesFile(t *testing.T) {
	server := &mediaServer{body: []byte("video-bytes")}
	srv := httptest.NewServer(server)
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	ex := &fakeExtractor{info: newInfo(srv.URL)}
	d := newDownloader(t, cfg, ex)

	req, err := model.NewDownloadConfig("https://www.youtube.com/watch?v=abc123", cfg.Paths.VideoDir, model.WithQuality("720p"))
	if err != nil {
		t.Fatalf("NewDownloadConfig: %v", err)
	}
	result := d.Download(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	wantPath := filepath.Join(cfg.Paths.VideoDir, "Sample Clip [abc123].mp4")
	if result.FilePath != wantPath {
		t.Fatalf("unexpected path %q", result.FilePath)
	}
	if result.FileSize != int64(len("video-bytes")) {
		t.Fatalf("unexpected size %d", result.FileSize)
	}
	if result.DownloadTime <= 0 {
		t.Fatal("expected positive download time")
	}
	if result.Media.FormatID != "22" || result.Media.Title != "Sample Clip" {
		t.Fatalf("unexpected media info %+v", result.Media)
	}
	data, _ := os.ReadFile(wantPath)
	if !bytes.Equal(data, []byte("video-bytes")) {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestDownloadRetriesTransientTransferFailures(t *testing.T) {
	server := &mediaServer{body: []byte("ok"), failFirst: 2}
	srv := httptest.NewServer(server)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRetries(3))
	d := newDownloader(t, cfg, &fakeExtractor{info: newInfo(srv.URL)})

	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	result := d.Download(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success after retries, got %v", result.Err)
	}
	if hits := server.hits.Load(); hits != 3 {
		t.Fatalf("expected 3 requests, got %d", hits)
	}
}

func TestDownloadExhaustsRetries(t *testing.T) {
	server := &mediaServer{status: http.StatusBadGateway}
	srv := httptest.NewServer(server)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRetries(3))
	d := newDownloader(t, cfg, &fakeExtractor{info: newInfo(srv.URL)})

	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	result := d.Download(context.Background(), req)
	if result.Success || result.Kind() != services.KindTransfer {
		t.Fatalf("expected transfer failure, got success=%v kind=%s", result.Success, result.Kind())
	}
	if hits := server.hits.Load(); hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
	if result.FilePath != "" || result.FileSize != 0 {
		t.Fatalf("failed result should not carry a file: %+v", result)
	}
}

func TestDownloadAuthenticationIsNotRetried(t *testing.T) {
	server := &mediaServer{status: http.StatusForbidden}
	srv := httptest.NewServer(server)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRetries(5))
	d := newDownloader(t, cfg, &fakeExtractor{info: newInfo(srv.URL)})

	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	result := d.Download(context.Background(), req)
	if result.Kind() != services.KindAuthentication {
		t.Fatalf("expected authentication failure, got %s (%v)", result.Kind(), result.Err)
	}
	if hits := server.hits.Load(); hits != 1 {
		t.Fatalf("expected a single request, got %d", hits)
	}
}

func TestDownloadRetriesTransientExtraction(t *testing.T) {
	srv := httptest.NewServer(&mediaServer{body: []byte("ok")})
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRetries(3))
	transient := services.Wrap(services.ErrTransfer, "extract", "yt-dlp", "HTTP Error 503", nil)
	ex := &fakeExtractor{info: newInfo(srv.URL), failures: []error{transient, transient}}
	d := newDownloader(t, cfg, ex)

	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	if result := d.Download(context.Background(), req); !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if calls := ex.calls.Load(); calls != 3 {
		t.Fatalf("expected 3 extraction calls, got %d", calls)
	}
}

func TestDownloadUnsupportedPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetries(3))
	unsupported := services.Wrap(services.ErrUnsupportedPlatform, "extract", "yt-dlp", "Unsupported URL", nil)
	ex := &fakeExtractor{failures: []error{unsupported}}
	d := newDownloader(t, cfg, ex)

	req, _ := model.NewDownloadConfig("https://unknown.example/page", cfg.Paths.VideoDir)
	result := d.Download(context.Background(), req)
	if result.Kind() != services.KindUnsupportedPlatform {
		t.Fatalf("expected unsupported platform, got %s", result.Kind())
	}
	if calls := ex.calls.Load(); calls != 1 {
		t.Fatalf("unsupported platform must not be retried, got %d calls", calls)
	}
}

func TestDownloadFormatErrors(t *testing.T) {
	srv := httptest.NewServer(&mediaServer{body: []byte("ok")})
	defer srv.Close()
	cfg := testsupport.NewConfig(t)

	d := newDownloader(t, cfg, &fakeExtractor{info: newInfo(srv.URL)})
	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir, model.WithFormatID("999"))
	if result := d.Download(context.Background(), req); result.Kind() != services.KindFormatNotFound {
		t.Fatalf("expected format not found, got %s", result.Kind())
	}

	onlyHLS := &extract.Info{ID: "x", Formats: []extract.Format{{ID: "hls", URL: srv.URL + "/a.m3u8", Protocol: "m3u8_native"}}}
	d = newDownloader(t, cfg, &fakeExtractor{info: onlyHLS})
	req, _ = model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	if result := d.Download(context.Background(), req); result.Kind() != services.KindNoFormatsAvailable {
		t.Fatalf("expected no formats available, got %s", result.Kind())
	}
}

func TestDownloadInvalidInputNeverExtracts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ex := &fakeExtractor{}
	d := newDownloader(t, cfg, ex)

	result := d.Download(context.Background(), model.DownloadConfig{URL: "not a url", OutputPath: cfg.Paths.VideoDir, Quality: "best"})
	if result.Kind() != services.KindInvalidInput {
		t.Fatalf("expected invalid input, got %s", result.Kind())
	}
	if ex.calls.Load() != 0 {
		t.Fatal("extractor should not be called for invalid input")
	}
	if !errors.Is(result.Err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", result.Err)
	}
}

func TestDownloadPassesAccessOptionsToExtractor(t *testing.T) {
	media := &mediaServer{body: []byte("ok")}
	srv := httptest.NewServer(media)
	defer srv.Close()
	cfg := testsupport.NewConfig(t)
	ex := &fakeExtractor{info: newInfo(srv.URL)}
	d := newDownloader(t, cfg, ex)

	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir,
		model.WithCredentials("alice", "secret"),
		model.WithProxy(""),
	)
	if result := d.Download(context.Background(), req); !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if ex.lastReq.Username != "alice" || ex.lastReq.Password != "secret" {
		t.Fatalf("credentials not forwarded: %+v", ex.lastReq)
	}
	if media.sawAuth.Load() {
		t.Fatal("account credentials sent to the media host")
	}
}

func TestDownloadWithoutSpeedLimit(t *testing.T) {
	srv := httptest.NewServer(&mediaServer{body: []byte("unthrottled")})
	defer srv.Close()
	cfg := testsupport.NewConfig(t)
	cfg.Network.LimitSpeed = ""
	d := newDownloader(t, cfg, &fakeExtractor{info: newInfo(srv.URL)})

	req, err := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	if err != nil {
		t.Fatalf("NewDownloadConfig: %v", err)
	}
	if req.LimitSpeed != "" {
		t.Fatalf("expected no speed limit, got %q", req.LimitSpeed)
	}
	result := d.Download(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success without a speed limit, got %v", result.Err)
	}

	limited, err := model.NewDownloadConfig("https://example.com/v", filepath.Join(cfg.Paths.VideoDir, "limited"),
		model.WithLimitSpeed("1M"))
	if err != nil {
		t.Fatalf("NewDownloadConfig: %v", err)
	}
	if result := d.Download(context.Background(), limited); !result.Success {
		t.Fatalf("expected success with a speed limit, got %v", result.Err)
	}
}

func TestDownloadCanceledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &fakeExtractor{failures: []error{context.Canceled}}
	d := newDownloader(t, cfg, ex)

	req, _ := model.NewDownloadConfig("https://example.com/v", cfg.Paths.VideoDir)
	result := d.Download(ctx, req)
	if result.Success || !errors.Is(result.Err, context.Canceled) {
		t.Fatalf("expected cancellation, got %+v", result)
	}
}
