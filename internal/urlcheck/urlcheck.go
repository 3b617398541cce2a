// Package urlcheck gates every request before it reaches the network.
package urlcheck

import (
	"net/url"
	"strings"
)

// Valid reports whether raw is an absolute http or https URL with a host.
// Malformed input yields false rather than an error.
func Valid(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return false
	}
	if parsed.Opaque != "" {
		return false
	}
	return parsed.Hostname() != ""
}
