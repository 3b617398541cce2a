// Package config loads, normalizes, and validates downie configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DOWNIE_PROXY. The Config type holds the knobs that sit outside a single
// request: default output directories, the retry budget, timeouts, tool
// binaries, and logging.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
