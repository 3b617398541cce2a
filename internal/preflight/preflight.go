package preflight

import (
	"context"

	"downie/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory checks for the given config. Output
// directories that do not exist yet are reported but are created on demand
// by the downloaders.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Video directory", cfg.Paths.VideoDir),
		CheckDirectoryAccess("Subtitle directory", cfg.Paths.SubtitleDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	return results
}
