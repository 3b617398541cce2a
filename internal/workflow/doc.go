// Package workflow runs a complete request on behalf of the CLI.
//
// RunVideo downloads, optionally post-processes (replacing the result's file
// with the processed artifact), tags extracted MP3 audio, and records the
// outcome in the history archive. RunSubtitles wraps the subtitle
// downloader. Both attach a fresh request id to the context so every log
// line of one run can be correlated.
package workflow
