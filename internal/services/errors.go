package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrFormatNotFound      = errors.New("format not found")
	ErrNoFormatsAvailable  = errors.New("no formats available")
	ErrAuthentication      = errors.New("authentication failed")
	ErrTransfer            = errors.New("transfer error")
	ErrExtraction          = errors.New("extraction error")
	ErrProcessing          = errors.New("processing error")
	ErrEncodingRepair      = errors.New("encoding repair warning")

	// ErrConflictingOptions also matches ErrProcessing.
	ErrConflictingOptions = fmt.Errorf("%w: conflicting options", ErrProcessing)
)

// Kind is a switchable classification of a failure.
type Kind string

const (
	KindNone                Kind = ""
	KindInvalidInput        Kind = "invalid_input"
	KindUnsupportedPlatform Kind = "unsupported_platform"
	KindFormatNotFound      Kind = "format_not_found"
	KindNoFormatsAvailable  Kind = "no_formats_available"
	KindAuthentication      Kind = "authentication"
	KindTransfer            Kind = "transfer"
	KindExtraction          Kind = "extraction"
	KindConflictingOptions  Kind = "conflicting_options"
	KindProcessing          Kind = "processing"
	KindEncodingRepair      Kind = "encoding_repair"
	KindCanceled            Kind = "canceled"
	KindUnknown             Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransfer
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error onto its Kind. Order matters: cancellation wins over
// any marker wrapping it, and conflicting options are checked before the
// broader processing marker.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUnsupportedPlatform):
		return KindUnsupportedPlatform
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrFormatNotFound):
		return KindFormatNotFound
	case errors.Is(err, ErrNoFormatsAvailable):
		return KindNoFormatsAvailable
	case errors.Is(err, ErrConflictingOptions):
		return KindConflictingOptions
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrEncodingRepair):
		return KindEncodingRepair
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrTransfer):
		return KindTransfer
	default:
		return KindUnknown
	}
}

// Retryable reports whether a failure may succeed on another attempt.
// Authentication failures are never retried even when wrapped as transfer errors.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrAuthentication) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransfer)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
