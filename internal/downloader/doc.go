// Package downloader resolves a page URL to a concrete media format and
// transfers it to disk.
//
// Download never returns an error value: every outcome, including invalid
// input and exhausted retries, is reported through model.DownloadResult so
// callers can render success and failure uniformly. Extraction and transfer
// each run under the configured retry policy. Authentication failures and
// unsupported platforms are surfaced on the first attempt.
//
// Format selection only considers formats reachable with plain HTTP(S)
// requests. A quality token picks the tallest format at or below the target
// height, falling back to the shortest one above it; ties go to formats with
// audio and then to the higher bitrate. Video-only formats are eligible, and
// no separate audio stream is merged in.
package downloader
