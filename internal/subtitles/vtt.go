package subtitles

import (
	"html"
	"regexp"
	"strings"
)

// Inline timestamps, class spans, and voice tags carry no meaning in SRT.
var (
	vttTimestampTag = regexp.MustCompile(`<\d{1,2}(:\d{2}){1,2}\.\d{3}>`)
	vttMarkupTag    = regexp.MustCompile(`</?(c|v|lang|ruby|rt)(\.[^\s>]*)?(\s[^>]*)?>`)
)

// ParseVTT reads WebVTT content. Header, NOTE, STYLE, and REGION blocks are
// ignored; cue identifiers are optional.
func ParseVTT(data []byte) []Cue {
	var cues []Cue
	for _, block := range splitBlocks(string(data)) {
		lines := strings.Split(block, "\n")
		first := strings.TrimSpace(lines[0])
		if strings.HasPrefix(first, "WEBVTT") && !strings.Contains(first, "-->") {
			continue
		}
		if isVTTMetaBlock(first) {
			continue
		}
		if !strings.Contains(first, "-->") {
			lines = lines[1:]
		}
		if len(lines) < 2 {
			continue
		}
		start, end, ok := parseTiming(lines[0])
		if !ok {
			continue
		}
		text := cleanText(stripVTTMarkup(strings.Join(lines[1:], "\n")))
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Start: start, End: end, Text: text})
	}
	return cues
}

// WriteVTT renders cues as WebVTT.
func WriteVTT(cues []Cue) []byte {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n")
	for _, cue := range cues {
		sb.WriteString("\n")
		sb.WriteString(formatVTTTimestamp(cue.Start))
		sb.WriteString(" --> ")
		sb.WriteString(formatVTTTimestamp(cue.End))
		sb.WriteString("\n")
		sb.WriteString(cue.Text)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

func isVTTMetaBlock(first string) bool {
	for _, prefix := range []string{"NOTE", "STYLE", "REGION"} {
		if first == prefix || strings.HasPrefix(first, prefix+" ") {
			return true
		}
	}
	return false
}

func stripVTTMarkup(text string) string {
	text = vttTimestampTag.ReplaceAllString(text, "")
	text = vttMarkupTag.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}
