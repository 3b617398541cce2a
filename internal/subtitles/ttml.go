package subtitles

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Line breaks in XML text are plain whitespace; only <br/> breaks a line.
var xmlSpace = regexp.MustCompile(`\s+`)

// ParseTTML reads XML timed text: TTML/DFXP (<p begin end|dur>), YouTube
// srv3 (<p t d> in milliseconds), and srv1 (<text start dur> in seconds).
func ParseTTML(data []byte) ([]Cue, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity

	var (
		cues    []Cue
		current *Cue
		text    strings.Builder
		depth   int
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if current != nil {
				depth++
				if t.Name.Local == "br" {
					text.WriteString("\n")
				}
				continue
			}
			if t.Name.Local != "p" && t.Name.Local != "text" {
				continue
			}
			if cue, ok := timedElement(t); ok {
				current = &cue
				text.Reset()
				depth = 0
			}
		case xml.EndElement:
			if current == nil {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			current.Text = cleanText(trimLines(text.String()))
			if current.Text != "" {
				cues = append(cues, *current)
			}
			current = nil
		case xml.CharData:
			if current != nil {
				text.WriteString(xmlSpace.ReplaceAllString(string(t), " "))
			}
		}
	}
	return cues, nil
}

func timedElement(el xml.StartElement) (Cue, bool) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Name.Local] = a.Value
	}
	var (
		start, end, dur time.Duration
		ok              bool
		err             error
	)
	switch {
	case attrs["begin"] != "":
		if start, err = parseOffset(attrs["begin"]); err != nil {
			return Cue{}, false
		}
		if v := attrs["end"]; v != "" {
			if end, err = parseOffset(v); err != nil {
				return Cue{}, false
			}
			ok = true
		} else if v := attrs["dur"]; v != "" {
			if dur, err = parseOffset(v); err != nil {
				return Cue{}, false
			}
			end, ok = start+dur, true
		}
	case attrs["t"] != "":
		startMS, errT := strconv.ParseInt(attrs["t"], 10, 64)
		durMS, errD := strconv.ParseInt(attrs["d"], 10, 64)
		if errT != nil || errD != nil {
			return Cue{}, false
		}
		start = time.Duration(startMS) * time.Millisecond
		end, ok = start+time.Duration(durMS)*time.Millisecond, true
	case attrs["start"] != "":
		startSec, errS := strconv.ParseFloat(attrs["start"], 64)
		durSec, errD := strconv.ParseFloat(attrs["dur"], 64)
		if errS != nil || errD != nil {
			return Cue{}, false
		}
		start = secondsToDuration(startSec)
		end, ok = secondsToDuration(startSec+durSec), true
	}
	if !ok {
		return Cue{}, false
	}
	return Cue{Start: start, End: end}, true
}

// parseOffset handles TTML clock times and offset times with h/m/s/ms units.
// Tick and frame offsets are not supported.
func parseOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ":") {
		return parseClock(value)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	return d.Round(time.Millisecond), nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}

func trimLines(text string) string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "\n")
}
