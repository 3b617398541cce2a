package model

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseRate converts a bandwidth string to bytes per second. Single-letter
// suffixes follow the binary convention used by download tools, so "1M" is
// 1 MiB/s and "500K" is 500 KiB/s. Explicit units ("2MB", "1.5MiB") and a
// trailing "/s" are accepted too.
func ParseRate(value string) (int64, error) {
	v := strings.TrimSpace(value)
	v = strings.TrimSuffix(strings.TrimSuffix(v, "/s"), "ps")
	if v == "" {
		return 0, fmt.Errorf("empty rate")
	}
	switch last := v[len(v)-1]; last {
	case 'k', 'K', 'm', 'M', 'g', 'G', 't', 'T':
		v += "iB"
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", value, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("rate %q must be positive", value)
	}
	return int64(n), nil
}
