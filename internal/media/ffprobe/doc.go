// Package ffprobe wraps the ffprobe CLI to inspect media containers.
//
// The processor uses it to read the source duration for progress reporting
// and to confirm that an output carries the streams it should: no audio after
// audio removal, only audio after extraction.
package ffprobe
