package subtitles

import (
	"fmt"
	"strings"

	"downie/internal/services"
)

const component = "subtitles"

// Parse decodes subtitle content of the named format into cues.
func Parse(data []byte, format string) ([]Cue, error) {
	switch normalizeFormat(format) {
	case "srt":
		return ParseSRT(data), nil
	case "vtt":
		return ParseVTT(data), nil
	case "ass", "ssa":
		return ParseASS(data), nil
	case "ttml", "dfxp", "xml", "srv1", "srv2", "srv3":
		cues, err := ParseTTML(data)
		if err != nil {
			return nil, services.Wrap(services.ErrProcessing, component, "parse", "malformed "+format, err)
		}
		return cues, nil
	default:
		return nil, services.Wrap(services.ErrProcessing, component, "parse",
			fmt.Sprintf("unsupported subtitle format %q", format), nil)
	}
}

// Convertible reports whether format can be parsed into cues.
func Convertible(format string) bool {
	switch normalizeFormat(format) {
	case "srt", "vtt", "ass", "ssa", "ttml", "dfxp", "xml", "srv1", "srv2", "srv3":
		return true
	default:
		return false
	}
}

// ConvertToSRT rewrites content of the named format as canonical SRT.
// Converting output that is already canonical returns identical bytes.
func ConvertToSRT(data []byte, format string) ([]byte, error) {
	cues, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, services.Wrap(services.ErrProcessing, component, "convert",
			fmt.Sprintf("no cues found in %s content", normalizeFormat(format)), nil)
	}
	return WriteSRT(cues), nil
}

// Render writes cues in a text format that supports merging.
func Render(cues []Cue, format string) ([]byte, error) {
	switch normalizeFormat(format) {
	case "srt":
		return WriteSRT(cues), nil
	case "vtt":
		return WriteVTT(cues), nil
	default:
		return nil, services.Wrap(services.ErrProcessing, component, "render",
			fmt.Sprintf("cannot write %q", format), nil)
	}
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}
