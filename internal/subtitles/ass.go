package subtitles

import (
	"regexp"
	"sort"
	"strings"
)

var (
	assOverride   = regexp.MustCompile(`\{[^}]*\}`)
	defaultFields = []string{"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}
)

// ParseASS reads Dialogue events from ASS/SSA content. Override blocks are
// removed and events are ordered by start time.
func ParseASS(data []byte) []Cue {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	var (
		cues     []Cue
		inEvents bool
		fields   = defaultFields
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inEvents = strings.EqualFold(line, "[events]")
			continue
		}
		if !inEvents {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "format":
			fields = parseASSFormat(value)
		case "dialogue":
			if cue, ok := parseASSDialogue(value, fields); ok {
				cues = append(cues, cue)
			}
		}
	}
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
	return cues
}

func parseASSFormat(value string) []string {
	parts := strings.Split(value, ",")
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		fields = append(fields, strings.ToLower(strings.TrimSpace(part)))
	}
	return fields
}

func parseASSDialogue(value string, fields []string) (Cue, bool) {
	values := strings.SplitN(strings.TrimSpace(value), ",", len(fields))
	if len(values) != len(fields) {
		return Cue{}, false
	}
	var startText, endText, text string
	for i, name := range fields {
		switch name {
		case "start":
			startText = values[i]
		case "end":
			endText = values[i]
		case "text":
			text = values[i]
		}
	}
	start, err := parseClock(startText)
	if err != nil {
		return Cue{}, false
	}
	end, err := parseClock(endText)
	if err != nil {
		return Cue{}, false
	}
	text = assOverride.ReplaceAllString(text, "")
	text = strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(text)
	text = cleanText(text)
	if text == "" {
		return Cue{}, false
	}
	return Cue{Start: start, End: end, Text: text}, true
}
