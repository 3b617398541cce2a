package tagging_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"

	"downie/internal/services"
	"downie/internal/tagging"
	"downie/internal/testsupport"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareArtworkScalesAndConverts(t *testing.T) {
	out, err := tagging.PrepareArtwork(pngBytes(t, 400, 200), 100)
	if err != nil {
		t.Fatalf("PrepareArtwork returned error: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("expected jpeg output: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("unexpected size %dx%d", cfg.Width, cfg.Height)
	}

	out, err = tagging.PrepareArtwork(pngBytes(t, 60, 80), 100)
	if err != nil {
		t.Fatalf("PrepareArtwork returned error: %v", err)
	}
	cfg, _ = jpeg.DecodeConfig(bytes.NewReader(out))
	if cfg.Width != 60 || cfg.Height != 80 {
		t.Fatalf("small image should keep its size, got %dx%d", cfg.Width, cfg.Height)
	}

	if _, err := tagging.PrepareArtwork([]byte("not an image"), 100); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTagWritesFramesAndArtwork(t *testing.T) {
	thumb := pngBytes(t, 300, 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(thumb)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Tagging.EmbedThumbnail = true
	cfg.Tagging.ArtworkMaxPx = 120
	path := filepath.Join(t.TempDir(), "clip.mp3")
	testsupport.WriteBytes(t, path, bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 256))

	tagger := tagging.New(cfg)
	err := tagger.Tag(context.Background(), path, tagging.Metadata{
		Title:        "Sample Clip",
		Artist:       "Someone",
		Album:        "Youtube",
		SourceURL:    "https://www.youtube.com/watch?v=abc123",
		ThumbnailURL: srv.URL + "/thumb.png",
	})
	if err != nil {
		t.Fatalf("Tag returned error: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tag.Close()
	if tag.Title() != "Sample Clip" || tag.Artist() != "Someone" || tag.Album() != "Youtube" {
		t.Fatalf("unexpected frames title=%q artist=%q album=%q", tag.Title(), tag.Artist(), tag.Album())
	}
	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pictures) != 1 {
		t.Fatalf("expected one picture frame, got %d", len(pictures))
	}
	pic, ok := pictures[0].(id3v2.PictureFrame)
	if !ok || pic.MimeType != "image/jpeg" {
		t.Fatalf("unexpected picture frame %#v", pictures[0])
	}
	dim, err := jpeg.DecodeConfig(bytes.NewReader(pic.Picture))
	if err != nil || dim.Width != 120 || dim.Height != 120 {
		t.Fatalf("unexpected artwork %dx%d, %v", dim.Width, dim.Height, err)
	}
}

func TestTagSurvivesArtworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Tagging.EmbedThumbnail = true
	path := filepath.Join(t.TempDir(), "clip.mp3")
	testsupport.WriteBytes(t, path, bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 64))

	err := tagging.New(cfg).Tag(context.Background(), path, tagging.Metadata{Title: "Only Title", ThumbnailURL: srv.URL})
	if err != nil {
		t.Fatalf("expected artwork failure to be tolerated, got %v", err)
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tag.Close()
	if tag.Title() != "Only Title" || len(tag.GetFrames(tag.CommonID("Attached picture"))) != 0 {
		t.Fatalf("unexpected tag state title=%q", tag.Title())
	}
}

func TestTagRejectsNonMP3(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	err := tagging.New(cfg).Tag(context.Background(), filepath.Join(t.TempDir(), "clip.m4a"), tagging.Metadata{Title: "x"})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !tagging.Supported("A.MP3") || tagging.Supported("a.flac") {
		t.Fatal("unexpected Supported result")
	}
}
