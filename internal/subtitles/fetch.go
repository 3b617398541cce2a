package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"downie/internal/extract"
	"downie/internal/language"
	"downie/internal/services"
	"downie/internal/transfer"
)

// maxTrackBytes bounds a single subtitle download.
const maxTrackBytes = 32 << 20

// Selection is the platform track chosen for one requested (language, format) pair.
type Selection struct {
	Language string // as requested
	Key      string // platform language key, e.g. "en-US"
	Format   string
	Auto     bool
	Track    extract.Track
}

// Resolve picks the track serving lang in format. A human-authored track with
// a matching extension wins. Automatic captions are considered only when
// allowAuto is set and the platform offers no human track for the language
// at all.
func Resolve(info *extract.Info, lang, format string, allowAuto bool) (Selection, bool) {
	if info == nil {
		return Selection{}, false
	}
	format = normalizeFormat(format)
	if key, ok := language.Best(lang, sortedKeys(info.Subtitles)); ok {
		if track, ok := trackWithExt(info.Subtitles[key], format); ok {
			return Selection{Language: lang, Key: key, Format: format, Track: track}, true
		}
		return Selection{}, false
	}
	if !allowAuto {
		return Selection{}, false
	}
	if key, ok := language.Best(lang, sortedKeys(info.AutomaticCaptions)); ok {
		if track, ok := trackWithExt(info.AutomaticCaptions[key], format); ok {
			return Selection{Language: lang, Key: key, Format: format, Auto: true, Track: track}, true
		}
	}
	return Selection{}, false
}

func sortedKeys(tracks map[string][]extract.Track) []string {
	keys := make([]string, 0, len(tracks))
	for key, list := range tracks {
		if len(list) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func trackWithExt(tracks []extract.Track, format string) (extract.Track, bool) {
	for _, track := range tracks {
		if normalizeFormat(track.Ext) == format && track.URL != "" {
			return track, true
		}
	}
	return extract.Track{}, false
}

// fetchTrack downloads one track body in a single attempt.
func fetchTrack(ctx context.Context, client *http.Client, userAgent string, track extract.Track) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.URL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, component, "fetch", "build request", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransfer, component, "fetch", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, services.Wrap(services.ErrFormatNotFound, component, "fetch", resp.Status, nil)
	}
	if err := transfer.CheckStatus(resp, "fetch"); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrTransfer, component, "fetch", "read body", err)
	}
	if len(data) > maxTrackBytes {
		return nil, services.Wrap(services.ErrTransfer, component, "fetch",
			fmt.Sprintf("track exceeds %d bytes", maxTrackBytes), nil)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, services.Wrap(services.ErrFormatNotFound, component, "fetch", "empty track", nil)
	}
	return data, nil
}
