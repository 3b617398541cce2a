// Package services defines shared utilities consumed by the downloaders, the
// processor, and the workflow layer.
//
// Key responsibilities:
//   - Error markers for every failure kind (invalid input, unsupported
//     platform, format selection, authentication, transfer, processing,
//     encoding repair) plus the Wrap helper that tags failures consistently.
//   - KindOf and Retryable, which callers use to render results and decide
//     whether another attempt is worthwhile.
//   - Context helpers that stamp request identifiers and component names for
//     logging.
//
// Callers match failures with errors.Is against the exported markers or switch
// on KindOf; they never parse error strings.
package services
