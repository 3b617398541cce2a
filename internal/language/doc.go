// Package language normalizes subtitle language codes.
//
// Platforms label tracks with ISO 639-1 codes, 639-2 codes, BCP 47 tags with
// regions, or plain English words. Lookups go through a small table of common
// languages first and fall back to golang.org/x/text for everything else, so
// requests like "en" can be matched against offered keys like "en-US".
package language
