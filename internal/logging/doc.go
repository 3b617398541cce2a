// Package logging assembles structured slog loggers and formatting helpers used
// across downie.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so downloads are tagged with their
// correlation ID and source URL. Credentials never pass through these helpers;
// callers redact proxy URLs before logging them.
package logging
