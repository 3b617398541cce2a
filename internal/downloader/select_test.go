package downloader

import (
	"errors"
	"testing"

	"downie/internal/extract"
	"downie/internal/services"
)

func sampleInfo(base string) *extract.Info {
	return &extract.Info{
		ID:       "abc123",
		Title:    "Sample Clip",
		Platform: "Youtube",
		Formats: []extract.Format{
			{ID: "18", Ext: "mp4", Height: 360, VCodec: "avc1", ACodec: "mp4a", TBR: 500, URL: base + "/18", Protocol: "https"},
			{ID: "22", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a", TBR: 1500, URL: base + "/22", Protocol: "https"},
			{ID: "136", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "none", TBR: 2500, URL: base + "/136", Protocol: "https"},
			{ID: "137", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "none", TBR: 4000, URL: base + "/137", Protocol: "https"},
			{ID: "140", Ext: "m4a", VCodec: "none", ACodec: "mp4a", TBR: 128, URL: base + "/140", Protocol: "https"},
			{ID: "hls-1080", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "mp4a", URL: base + "/master.m3u8", Protocol: "m3u8_native"},
		},
	}
}

func TestSelectFormatByQuality(t *testing.T) {
	info := sampleInfo("https://cdn.example")
	cases := []struct {
		quality string
		want    string
	}{
		{"best", "137"},
		{"worst", "18"},
		{"1080p", "137"},
		{"720p", "22"},
		{"720", "22"},
		{"900", "22"},
		{"4k", "137"},
		{"240p", "18"},
	}
	for _, tc := range cases {
		got, err := SelectFormat(info, tc.quality, "")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.quality, err)
		}
		if got.ID != tc.want {
			t.Errorf("%s: got format %s, want %s", tc.quality, got.ID, tc.want)
		}
	}
}

func TestSelectFormatByID(t *testing.T) {
	info := sampleInfo("https://cdn.example")

	got, err := SelectFormat(info, "best", "140")
	if err != nil || got.ID != "140" {
		t.Fatalf("expected explicit format 140, got %+v err=%v", got, err)
	}

	if _, err := SelectFormat(info, "best", "999"); !errors.Is(err, services.ErrFormatNotFound) {
		t.Fatalf("expected format not found, got %v", err)
	}
	if _, err := SelectFormat(info, "best", "hls-1080"); !errors.Is(err, services.ErrFormatNotFound) {
		t.Fatalf("expected manifest format to be rejected, got %v", err)
	}
}

func TestSelectFormatNoTransferableFormats(t *testing.T) {
	info := &extract.Info{
		ID: "x",
		Formats: []extract.Format{
			{ID: "hls", Height: 720, URL: "https://cdn.example/a.m3u8", Protocol: "m3u8"},
			{ID: "dash", Height: 1080, URL: "https://cdn.example/a.mpd", Protocol: "http_dash_segments"},
		},
	}
	if _, err := SelectFormat(info, "best", ""); !errors.Is(err, services.ErrNoFormatsAvailable) {
		t.Fatalf("expected no formats available, got %v", err)
	}
	if _, err := SelectFormat(nil, "best", ""); !errors.Is(err, services.ErrNoFormatsAvailable) {
		t.Fatalf("expected no formats available for nil info, got %v", err)
	}
}

func TestSelectFormatAudioOnlyFallback(t *testing.T) {
	info := &extract.Info{
		ID: "song",
		Formats: []extract.Format{
			{ID: "low", VCodec: "none", ACodec: "opus", TBR: 64, URL: "https://cdn.example/low", Protocol: "https"},
			{ID: "high", VCodec: "none", ACodec: "opus", TBR: 160, URL: "https://cdn.example/high", Protocol: "https"},
		},
	}
	got, err := SelectFormat(info, "720p", "")
	if err != nil || got.ID != "high" {
		t.Fatalf("expected higher bitrate audio, got %+v err=%v", got, err)
	}
}

func TestSelectFormatIgnoresUnknownHeightWhenRanked(t *testing.T) {
	info := &extract.Info{
		ID: "clip",
		Formats: []extract.Format{
			{ID: "hd", Ext: "mp4", Height: 1080, VCodec: "avc1", ACodec: "mp4a", URL: "https://cdn.example/hd", Protocol: "https"},
			{ID: "qhd", Ext: "mp4", Height: 1440, VCodec: "avc1", ACodec: "mp4a", URL: "https://cdn.example/qhd", Protocol: "https"},
			{ID: "unknown", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a", URL: "https://cdn.example/unknown", Protocol: "https"},
		},
	}
	cases := []struct {
		quality string
		want    string
	}{
		{"720p", "hd"},
		{"worst", "hd"},
		{"best", "qhd"},
		{"1440p", "qhd"},
	}
	for _, tc := range cases {
		got, err := SelectFormat(info, tc.quality, "")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.quality, err)
		}
		if got.ID != tc.want {
			t.Errorf("%s: got format %s, want %s", tc.quality, got.ID, tc.want)
		}
	}

	info.Formats = info.Formats[2:]
	got, err := SelectFormat(info, "720p", "")
	if err != nil || got.ID != "unknown" {
		t.Fatalf("expected unranked format as last resort, got %+v err=%v", got, err)
	}
}

func TestSelectFormatRejectsBadQuality(t *testing.T) {
	if _, err := SelectFormat(sampleInfo("https://cdn.example"), "ultra", ""); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCandidatesOrdering(t *testing.T) {
	got := Candidates(sampleInfo("https://cdn.example"))
	want := []string{"137", "22", "136", "18", "140"}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i, f := range got {
		if f.ID != want[i] {
			t.Fatalf("position %d: got %s want %s", i, f.ID, want[i])
		}
	}
}

func TestFileName(t *testing.T) {
	info := &extract.Info{ID: "abc123", Title: "My: Video?"}
	if got := FileName(info, extract.Format{Ext: "webm"}); got != "My- Video [abc123].webm" {
		t.Fatalf("unexpected file name %q", got)
	}
	if got := FileName(&extract.Info{ID: "id"}, extract.Format{}); got != "id.mp4" {
		t.Fatalf("unexpected fallback name %q", got)
	}
	if got := FileName(&extract.Info{}, extract.Format{Ext: "mp4"}); got != "download.mp4" {
		t.Fatalf("unexpected empty name %q", got)
	}
}
