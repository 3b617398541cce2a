// Package model defines the request and result values shared by the
// downloaders, the processor, and the CLI.
//
// Configs are plain values built through validating constructors
// (NewDownloadConfig, NewProcessingConfig, NewSubtitleConfig). Orchestrators
// receive them by value and never modify them. DownloadResult is produced once
// per download call; ReplaceFile is its only mutation and is reserved for the
// layer that runs processing after a download.
//
// Validation failures are tagged with services.ErrInvalidInput, except for
// contradictory processing options which carry services.ErrConflictingOptions.
package model
