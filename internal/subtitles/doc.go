// Package subtitles fetches platform subtitle tracks and normalizes them.
//
// Download resolves each requested (language, format) pair against the
// tracks reported by the extractor, fetches the matching files concurrently,
// and returns them in request order. Optional normalization repairs legacy
// text encodings, converts WebVTT, ASS/SSA, and TTML-style XML to SRT, and
// merges tracks into a single language-labelled file per format.
package subtitles
