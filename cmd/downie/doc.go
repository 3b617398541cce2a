// Package main hosts the downie CLI entrypoint and command graph.
//
// The Cobra command tree is a thin adapter: it turns flags into request
// models, hands them to the workflow runner, and renders the outcome. Video
// and subtitle downloads, format listing, dependency checks, configuration
// scaffolding, and the download history all live in internal packages.
package main
