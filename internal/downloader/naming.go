package downloader

import (
	"strings"

	"downie/internal/extract"
	"downie/internal/textutil"
)

const defaultExt = "mp4"

// FileName returns "<title> [<id>].<ext>" with the title sanitized for the
// filesystem. The id keeps two uploads with the same title apart.
func FileName(info *extract.Info, format extract.Format) string {
	title := textutil.SanitizeFileName(info.Title)
	id := textutil.SanitizeFileName(info.ID)
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format.Ext)), ".")
	if ext == "" || ext == "unknown_video" {
		ext = defaultExt
	}

	switch {
	case title == "" && id == "":
		return "download." + ext
	case title == "":
		return id + "." + ext
	case id == "":
		return title + "." + ext
	default:
		return title + " [" + id + "]." + ext
	}
}
