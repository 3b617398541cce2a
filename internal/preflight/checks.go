package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"downie/internal/config"
	"downie/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external tools for the given config. yt-dlp
// is required for any download; ffmpeg and ffprobe only for post-processing.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDLP,
			VersionArgs: []string{"--version"},
			Description: "Required for media extraction",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			VersionArgs: []string{"-version"},
			Description: "Required for video processing and audio extraction",
			Optional:    true,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			VersionArgs: []string{"-version"},
			Description: "Validates processed output",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}
