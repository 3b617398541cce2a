package subtitles

import (
	"fmt"
	"strings"
)

// ParseSRT reads SubRip content. Index lines are optional and malformed
// blocks are skipped.
func ParseSRT(data []byte) []Cue {
	var cues []Cue
	for _, block := range splitBlocks(string(data)) {
		lines := strings.Split(block, "\n")
		if len(lines) > 0 && isNumeric(lines[0]) {
			lines = lines[1:]
		}
		if len(lines) < 2 {
			continue
		}
		start, end, ok := parseTiming(lines[0])
		if !ok {
			continue
		}
		text := cleanText(strings.Join(lines[1:], "\n"))
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Start: start, End: end, Text: text})
	}
	return cues
}

// WriteSRT renders cues as canonical SRT: LF line endings, indexes from 1,
// a blank line between cues, and a trailing newline.
func WriteSRT(cues []Cue) []byte {
	var sb strings.Builder
	for i, cue := range cues {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTimestamp(cue.Start), formatSRTTimestamp(cue.End)))
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}
