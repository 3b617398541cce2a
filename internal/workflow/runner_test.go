package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"downie/internal/history"
	"downie/internal/model"
	"downie/internal/services"
	"downie/internal/subtitles"
	"downie/internal/tagging"
	"downie/internal/testsupport"
	"downie/internal/workflow"
)

type fakeDownloader struct {
	result    model.DownloadResult
	requestID string
	url       string
}

func (f *fakeDownloader) Download(ctx context.Context, _ model.DownloadConfig) model.DownloadResult {
	f.requestID, _ = services.RequestIDFromContext(ctx)
	f.url, _ = services.SourceURLFromContext(ctx)
	return f.result
}

type fakeProcessor struct {
	output string
	data   []byte
	err    error
	calls  int
	t      *testing.T
}

func (f *fakeProcessor) Process(_ context.Context, input string, _ model.ProcessingConfig) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	testsupport.WriteBytes(f.t, f.output, f.data)
	return f.output, nil
}

type fakeTagger struct {
	paths []string
	meta  tagging.Metadata
	err   error
}

func (f *fakeTagger) Tag(_ context.Context, path string, meta tagging.Metadata) error {
	f.paths = append(f.paths, path)
	f.meta = meta
	return f.err
}

type fakeRecorder struct {
	entries []history.Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, entry history.Entry) (history.Entry, error) {
	if f.err != nil {
		return history.Entry{}, f.err
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

type fakeSubtitles struct {
	requestID string
}

func (f *fakeSubtitles) Download(ctx context.Context, cfg model.SubtitleConfig) ([]subtitles.File, error) {
	f.requestID, _ = services.RequestIDFromContext(ctx)
	return []subtitles.File{{Path: filepath.Join(cfg.OutputPath, "clip.en.srt"), Language: "en", Format: "srt"}}, nil
}

func successResult(t *testing.T, dir string) model.DownloadResult {
	t.Helper()
	path := filepath.Join(dir, "clip.mp4")
	testsupport.WriteFile(t, path, 2048)
	return model.Succeeded(path, 2048, 3*time.Second, model.MediaInfo{
		ID:        "abc",
		Title:     "Clip",
		Uploader:  "Someone",
		Platform:  "youtube",
		Thumbnail: "https://img.example/abc.jpg",
		FormatID:  "22",
		Ext:       "mp4",
	})
}

func audioRequest(t *testing.T, dir string) model.DownloadConfig {
	t.Helper()
	proc, err := model.NewProcessingConfig(model.WithExtractAudio("mp3"))
	if err != nil {
		t.Fatalf("processing config: %v", err)
	}
	req, err := model.NewDownloadConfig("https://www.youtube.com/watch?v=abc", dir, model.WithProcessing(proc))
	if err != nil {
		t.Fatalf("download config: %v", err)
	}
	return req
}

func TestRunVideoDownloadOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.Paths.VideoDir
	video := &fakeDownloader{result: successResult(t, dir)}
	proc := &fakeProcessor{t: t}
	rec := &fakeRecorder{}
	runner := workflow.New(cfg,
		workflow.WithVideoDownloader(video),
		workflow.WithProcessor(proc),
		workflow.WithTagger(nil),
		workflow.WithHistory(rec),
	)

	req, err := model.NewDownloadConfig("https://www.youtube.com/watch?v=abc", dir)
	if err != nil {
		t.Fatalf("download config: %v", err)
	}
	result := runner.RunVideo(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if proc.calls != 0 {
		t.Fatalf("processor called %d times for download-only request", proc.calls)
	}
	if video.requestID == "" {
		t.Fatal("expected request id on context")
	}
	if video.url == "" {
		t.Fatal("expected source url on context")
	}
	if len(rec.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(rec.entries))
	}
	entry := rec.entries[0]
	if entry.RequestID != video.requestID || entry.FilePath != result.FilePath || entry.Processed {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.FormatID != "22" || entry.DownloadTime != 3*time.Second {
		t.Fatalf("unexpected entry metadata: %+v", entry)
	}
}

func TestRunVideoProcessesAndTagsAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.Paths.VideoDir
	video := &fakeDownloader{result: successResult(t, dir)}
	out := filepath.Join(dir, "clip.mp3")
	proc := &fakeProcessor{t: t, output: out, data: []byte("ID3 audio bytes")}
	tagger := &fakeTagger{}
	rec := &fakeRecorder{}
	runner := workflow.New(cfg,
		workflow.WithVideoDownloader(video),
		workflow.WithProcessor(proc),
		workflow.WithTagger(tagger),
		workflow.WithHistory(rec),
	)

	result := runner.RunVideo(context.Background(), audioRequest(t, dir))
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if result.FilePath != out {
		t.Fatalf("expected processed path %q, got %q", out, result.FilePath)
	}
	if result.FileSize != int64(len(proc.data)) {
		t.Fatalf("expected processed size %d, got %d", len(proc.data), result.FileSize)
	}
	if len(tagger.paths) != 1 || tagger.paths[0] != out {
		t.Fatalf("expected tagger call for %q, got %v", out, tagger.paths)
	}
	if tagger.meta.Title != "Clip" || tagger.meta.Artist != "Someone" || tagger.meta.ThumbnailURL == "" {
		t.Fatalf("unexpected metadata: %+v", tagger.meta)
	}
	if len(rec.entries) != 1 || !rec.entries[0].Processed || rec.entries[0].FilePath != out {
		t.Fatalf("unexpected history: %+v", rec.entries)
	}
}

func TestRunVideoProcessingFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.Paths.VideoDir
	video := &fakeDownloader{result: successResult(t, dir)}
	procErr := services.Wrap(services.ErrProcessing, "processor", "transcode", "ffmpeg exited 1", nil)
	proc := &fakeProcessor{t: t, err: procErr}
	rec := &fakeRecorder{}
	runner := workflow.New(cfg,
		workflow.WithVideoDownloader(video),
		workflow.WithProcessor(proc),
		workflow.WithTagger(nil),
		workflow.WithHistory(rec),
	)

	result := runner.RunVideo(context.Background(), audioRequest(t, dir))
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Kind() != services.KindProcessing {
		t.Fatalf("expected processing kind, got %s", result.Kind())
	}
	if len(rec.entries) != 0 {
		t.Fatalf("failed runs must not be recorded, got %+v", rec.entries)
	}
}

func TestRunVideoDownloadFailureSkipsProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	video := &fakeDownloader{result: model.Failed(services.Wrap(services.ErrTransfer, "downloader", "transfer", "reset", nil))}
	proc := &fakeProcessor{t: t}
	runner := workflow.New(cfg,
		workflow.WithVideoDownloader(video),
		workflow.WithProcessor(proc),
		workflow.WithTagger(nil),
	)

	result := runner.RunVideo(context.Background(), audioRequest(t, cfg.Paths.VideoDir))
	if result.Success || result.Kind() != services.KindTransfer {
		t.Fatalf("expected transfer failure, got %+v", result)
	}
	if proc.calls != 0 {
		t.Fatalf("processor must not run after a failed download")
	}
}

func TestRunVideoSideEffectFailuresAreNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.Paths.VideoDir
	video := &fakeDownloader{result: successResult(t, dir)}
	proc := &fakeProcessor{t: t, output: filepath.Join(dir, "clip.mp3"), data: []byte("audio")}
	runner := workflow.New(cfg,
		workflow.WithVideoDownloader(video),
		workflow.WithProcessor(proc),
		workflow.WithTagger(&fakeTagger{err: errors.New("tag write failed")}),
		workflow.WithHistory(&fakeRecorder{err: errors.New("database locked")}),
	)

	result := runner.RunVideo(context.Background(), audioRequest(t, dir))
	if !result.Success {
		t.Fatalf("expected success despite tagging and history errors, got %v", result.Err)
	}
	if !strings.HasSuffix(result.FilePath, ".mp3") {
		t.Fatalf("expected mp3 output, got %q", result.FilePath)
	}
}

func TestRunSubtitlesAttachesRequestID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	subs := &fakeSubtitles{}
	runner := workflow.New(cfg,
		workflow.WithVideoDownloader(&fakeDownloader{}),
		workflow.WithProcessor(&fakeProcessor{t: t}),
		workflow.WithTagger(nil),
		workflow.WithSubtitleDownloader(subs),
	)

	req, err := model.NewSubtitleConfig("https://www.youtube.com/watch?v=abc", cfg.Paths.SubtitleDir)
	if err != nil {
		t.Fatalf("subtitle config: %v", err)
	}
	files, err := runner.RunSubtitles(context.Background(), req)
	if err != nil {
		t.Fatalf("run subtitles: %v", err)
	}
	if len(files) != 1 || files[0].Language != "en" {
		t.Fatalf("unexpected files: %+v", files)
	}
	if subs.requestID == "" {
		t.Fatal("expected request id on context")
	}
}
