package downloader

import (
	"fmt"
	"sort"

	"downie/internal/extract"
	"downie/internal/model"
	"downie/internal/services"
)

// SelectFormat picks the format to download. An explicit formatID wins over
// the quality token.
func SelectFormat(info *extract.Info, quality, formatID string) (extract.Format, error) {
	if info == nil {
		return extract.Format{}, services.Wrap(services.ErrNoFormatsAvailable, component, "select", "no media info", nil)
	}
	if formatID != "" {
		f, ok := info.FindFormat(formatID)
		if !ok {
			return extract.Format{}, services.Wrap(services.ErrFormatNotFound, component, "select",
				fmt.Sprintf("format %q not offered for %s", formatID, info.ID), nil)
		}
		if !f.Transferable() {
			return extract.Format{}, services.Wrap(services.ErrFormatNotFound, component, "select",
				fmt.Sprintf("format %q is not downloadable over http (protocol %s)", formatID, f.Protocol), nil)
		}
		return f, nil
	}

	q, err := model.ParseQuality(quality)
	if err != nil {
		return extract.Format{}, err
	}

	candidates := Candidates(info)
	if len(candidates) == 0 {
		return extract.Format{}, services.Wrap(services.ErrNoFormatsAvailable, component, "select",
			fmt.Sprintf("none of %d formats is downloadable over http", len(info.Formats)), nil)
	}

	// Audio-only formats are a fallback for pages without any video.
	if video := withVideo(candidates); len(video) > 0 {
		candidates = video
	}
	// Formats without a known height only compete when nothing is ranked.
	if known := withHeight(candidates); len(known) > 0 {
		candidates = known
	}

	// Candidates are ordered tallest first with tie-breaks applied, so the
	// first match in the scan is the preferred one.
	switch {
	case q.Best:
		return candidates[0], nil
	case q.Worst:
		return lowest(candidates), nil
	}
	for _, f := range candidates {
		if f.Height <= q.Height {
			return f, nil
		}
	}
	return lowest(candidates), nil
}

// Candidates returns the transferable formats ordered by preference: height
// descending, then formats carrying audio, then higher bitrate. Formats with
// no known height sort last.
func Candidates(info *extract.Info) []extract.Format {
	var out []extract.Format
	for _, f := range info.Formats {
		if f.Transferable() {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return better(out[i], out[j])
	})
	return out
}

func withVideo(formats []extract.Format) []extract.Format {
	var out []extract.Format
	for _, f := range formats {
		if f.HasVideo() {
			out = append(out, f)
		}
	}
	return out
}

func withHeight(formats []extract.Format) []extract.Format {
	var out []extract.Format
	for _, f := range formats {
		if f.Height > 0 {
			out = append(out, f)
		}
	}
	return out
}

func better(a, b extract.Format) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.HasAudio() != b.HasAudio() {
		return a.HasAudio()
	}
	return a.TBR > b.TBR
}

// lowest returns the preferred format among those sharing the smallest
// height.
func lowest(sorted []extract.Format) extract.Format {
	minHeight := sorted[len(sorted)-1].Height
	for _, f := range sorted {
		if f.Height == minHeight {
			return f
		}
	}
	return sorted[len(sorted)-1]
}
