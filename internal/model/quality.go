package model

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	QualityBest  = "best"
	QualityWorst = "worst"
)

// Quality is a parsed quality token.
type Quality struct {
	Best   bool
	Worst  bool
	Height int
}

var namedHeights = map[string]int{
	"sd":  480,
	"hd":  720,
	"fhd": 1080,
	"2k":  1440,
	"qhd": 1440,
	"4k":  2160,
	"uhd": 2160,
	"8k":  4320,
}

// ParseQuality accepts "best", "worst", a height with or without a trailing
// "p" ("1080p", "720"), or a named tier such as "4k".
func ParseQuality(token string) (Quality, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	switch t {
	case "", QualityBest, "highest":
		return Quality{Best: true}, nil
	case QualityWorst, "lowest":
		return Quality{Worst: true}, nil
	}
	if h, ok := namedHeights[t]; ok {
		return Quality{Height: h}, nil
	}
	digits := strings.TrimSuffix(t, "p")
	if i := strings.IndexByte(digits, 'p'); i > 0 {
		// "1080p60" style tokens carry a frame rate suffix.
		digits = digits[:i]
	}
	h, err := strconv.Atoi(digits)
	if err != nil || h <= 0 {
		return Quality{}, invalid("quality", fmt.Sprintf("%q is not a resolution or best/worst", token))
	}
	return Quality{Height: h}, nil
}

// String renders the token back in its canonical form.
func (q Quality) String() string {
	switch {
	case q.Best:
		return QualityBest
	case q.Worst:
		return QualityWorst
	default:
		return strconv.Itoa(q.Height) + "p"
	}
}
