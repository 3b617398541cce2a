package model

import (
	"errors"
	"time"

	"downie/internal/services"
)

// MediaInfo carries descriptive metadata about a successful download.
type MediaInfo struct {
	ID        string
	Title     string
	Uploader  string
	Platform  string
	Thumbnail string
	FormatID  string
	Ext       string
}

// DownloadResult reports the outcome of one download call. FilePath,
// FileSize, and DownloadTime are set only on success; Err only on failure.
type DownloadResult struct {
	Success      bool
	FilePath     string
	FileSize     int64
	DownloadTime time.Duration
	Err          error
	Media        MediaInfo
}

// Succeeded builds a successful result.
func Succeeded(path string, size int64, elapsed time.Duration, media MediaInfo) DownloadResult {
	return DownloadResult{
		Success:      true,
		FilePath:     path,
		FileSize:     size,
		DownloadTime: elapsed,
		Media:        media,
	}
}

// Failed builds a failed result. A nil error is replaced so that a failed
// result always explains itself.
func Failed(err error) DownloadResult {
	if err == nil {
		err = errors.New("download failed without a reported cause")
	}
	return DownloadResult{Err: err}
}

// ReplaceFile points the result at a new artifact after processing. It is a
// no-op on failed results.
func (r *DownloadResult) ReplaceFile(path string, size int64) {
	if r == nil || !r.Success {
		return
	}
	r.FilePath = path
	r.FileSize = size
}

// Kind classifies the failure, or returns services.KindNone on success.
func (r DownloadResult) Kind() services.Kind {
	if r.Success {
		return services.KindNone
	}
	return services.KindOf(r.Err)
}
