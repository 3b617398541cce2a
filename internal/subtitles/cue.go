package subtitles

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cue is one timed block of subtitle text.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// parseClock accepts "HH:MM:SS,mmm", "HH:MM:SS.mmm", "MM:SS.mmm", and the
// centisecond form used by ASS ("H:MM:SS.cc").
func parseClock(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ",", ".")
	whole, frac, _ := strings.Cut(value, ".")
	parts := strings.Split(whole, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var hours, minutes, seconds int
	var errH, errM, errS error
	if len(parts) == 3 {
		hours, errH = strconv.Atoi(parts[0])
		parts = parts[1:]
	}
	minutes, errM = strconv.Atoi(parts[0])
	seconds, errS = strconv.Atoi(parts[1])
	if errH != nil || errM != nil || errS != nil || hours < 0 || minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	millis, err := parseFraction(frac)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

// parseFraction reads up to three fractional digits as milliseconds.
func parseFraction(frac string) (int, error) {
	if frac == "" {
		return 0, nil
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	for len(frac) < 3 {
		frac += "0"
	}
	return strconv.Atoi(frac)
}

func formatSRTTimestamp(d time.Duration) string {
	return formatClock(d, ',')
}

func formatVTTTimestamp(d time.Duration) string {
	return formatClock(d, '.')
}

func formatClock(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, ms)
}

// cleanText trims trailing whitespace per line and drops blank lines, which
// would otherwise terminate an SRT block early.
func cleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// splitBlocks breaks content on blank lines after normalizing line endings.
func splitBlocks(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	var blocks []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}

// parseTiming splits a "start --> end [settings]" line.
func parseTiming(line string) (time.Duration, time.Duration, bool) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, false
	}
	start, err := parseClock(left)
	if err != nil {
		return 0, 0, false
	}
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, false
	}
	end, err := parseClock(fields[0])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}
