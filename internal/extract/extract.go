package extract

import (
	"context"
	"fmt"
	"strings"
)

// Extractor resolves a URL into media metadata.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Info, error)
}

// Request carries the URL plus the access parameters passed through verbatim
// to the extraction backend.
type Request struct {
	URL         string
	Proxy       string
	Username    string
	Password    string
	CookiesFile string
}

// Info describes a resolved media page.
type Info struct {
	ID                string
	Title             string
	Uploader          string
	Platform          string
	WebpageURL        string
	Thumbnail         string
	Duration          float64
	Formats           []Format
	Subtitles         map[string][]Track
	AutomaticCaptions map[string][]Track
}

// Format describes one downloadable stream variant.
type Format struct {
	ID             string            `json:"format_id"`
	Note           string            `json:"format_note"`
	Ext            string            `json:"ext"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	FPS            float64           `json:"fps"`
	VCodec         string            `json:"vcodec"`
	ACodec         string            `json:"acodec"`
	Filesize       int64             `json:"filesize"`
	FilesizeApprox int64             `json:"filesize_approx"`
	TBR            float64           `json:"tbr"`
	URL            string            `json:"url"`
	Protocol       string            `json:"protocol"`
	Headers        map[string]string `json:"http_headers"`
}

// Track is one subtitle file offered by the platform.
type Track struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// HasVideo reports whether the format carries a video stream.
func (f Format) HasVideo() bool {
	switch strings.ToLower(f.VCodec) {
	case "none":
		return false
	case "":
		return f.Height > 0 || f.Width > 0
	default:
		return true
	}
}

// HasAudio reports whether the format carries audio. An unknown codec is
// assumed to be present, as progressive downloads often omit it.
func (f Format) HasAudio() bool {
	return !strings.EqualFold(f.ACodec, "none")
}

// Size returns the exact or estimated size in bytes, or 0 when unknown.
func (f Format) Size() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

// Transferable reports whether the format can be fetched with plain HTTP
// range requests. Manifest-based protocols (HLS, DASH fragments) cannot.
func (f Format) Transferable() bool {
	if f.URL == "" {
		return false
	}
	switch strings.ToLower(f.Protocol) {
	case "http", "https":
		return true
	case "":
		lower := strings.ToLower(f.URL)
		return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
	default:
		return false
	}
}

// Label renders a short human description such as "1080p" or "audio only".
func (f Format) Label() string {
	switch {
	case f.Note != "" && f.Height > 0:
		return fmt.Sprintf("%s (%dp)", f.Note, f.Height)
	case f.Height > 0:
		return fmt.Sprintf("%dp", f.Height)
	case f.Note != "":
		return f.Note
	case !f.HasVideo() && f.HasAudio():
		return "audio only"
	default:
		return f.ID
	}
}

// FindFormat returns the format with the given id.
func (i *Info) FindFormat(id string) (Format, bool) {
	if i == nil {
		return Format{}, false
	}
	for _, f := range i.Formats {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}
