package subtitles

import (
	"downie/internal/language"
)

// Track is one language's cues, in file order.
type Track struct {
	Language string
	Cues     []Cue
}

// Mergeable reports whether merged output can be written in format.
func Mergeable(format string) bool {
	switch normalizeFormat(format) {
	case "srt", "vtt":
		return true
	default:
		return false
	}
}

// Merge interleaves tracks by start time into one file, prefixing each cue
// with its language name in brackets. Every track keeps its own cue order;
// equal start times keep the order of tracks.
func Merge(tracks []Track, format string) ([]byte, error) {
	return Render(MergeCues(tracks), format)
}

// MergeCues performs the interleave used by Merge.
func MergeCues(tracks []Track) []Cue {
	total := 0
	labels := make([]string, len(tracks))
	for i, track := range tracks {
		total += len(track.Cues)
		labels[i] = "[" + language.DisplayName(track.Language) + "] "
	}
	merged := make([]Cue, 0, total)
	next := make([]int, len(tracks))
	for len(merged) < total {
		pick := -1
		for i, track := range tracks {
			if next[i] >= len(track.Cues) {
				continue
			}
			if pick < 0 || track.Cues[next[i]].Start < tracks[pick].Cues[next[pick]].Start {
				pick = i
			}
		}
		cue := tracks[pick].Cues[next[pick]]
		next[pick]++
		cue.Text = labels[pick] + cue.Text
		merged = append(merged, cue)
	}
	return merged
}
