package extract

import (
	"errors"
	"strings"

	"downie/internal/retry"
	"downie/internal/services"
)

var authTokens = []string{
	"sign in to confirm",
	"login required",
	"log in",
	"requires authentication",
	"private video",
	"members-only",
	"this video is only available for registered users",
	"http error 401",
	"http error 403",
	"401: unauthorized",
	"403: forbidden",
	"incorrect password",
	"invalid username",
}

// classify maps yt-dlp's stderr onto the error taxonomy.
func classify(stderr string, runErr error) error {
	detail := lastErrorLine(stderr)
	if detail == "" && runErr != nil {
		detail = runErr.Error()
	}
	lower := strings.ToLower(stderr)

	var cause error = runErr
	if detail != "" {
		cause = errors.Join(runErr, errors.New(detail))
	}

	switch {
	case strings.Contains(lower, "unsupported url"):
		return services.Wrap(services.ErrUnsupportedPlatform, "extract", "yt-dlp", "no extractor handles this URL", cause)
	case containsAny(lower, authTokens):
		return services.Wrap(services.ErrAuthentication, "extract", "yt-dlp", "platform requires authentication", cause)
	case retry.IsTransient(errors.New(lower)):
		return services.Wrap(services.ErrTransfer, "extract", "yt-dlp", "network failure", cause)
	default:
		return services.Wrap(services.ErrExtraction, "extract", "yt-dlp", "extraction failed", cause)
	}
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	fallback := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
		if fallback == "" {
			fallback = line
		}
	}
	return fallback
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
