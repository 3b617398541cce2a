// Package tagging writes ID3 metadata and cover art into extracted MP3 audio.
//
// Thumbnails are fetched over HTTP, decoded (JPEG, PNG, or WebP), scaled to
// fit the configured bound, and embedded as a JPEG front cover.
package tagging
