package preflight

import (
	"context"
	"fmt"

	"duet/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Warning marks a failed check that does not block rendering.
	Warning bool
}

// Options toggles the checks that reach remote services.
type Options struct {
	SkipRemote bool
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, bin := range CheckSystemDeps(cfg) {
		if !bin.OK() {
			results = append(results, Result{Name: bin.Name, Detail: fmt.Sprintf("%v (needed for %s)", bin.Err, bin.Purpose)})
			continue
		}
		results = append(results, Result{Name: bin.Name, Passed: true, Detail: bin.Path})
	}
	results = append(results, CheckFFmpegFilters(ctx, cfg.FFmpeg.FFmpegBinary))

	results = append(results,
		CheckDirectoryAccess("Projects directory", cfg.Paths.ProjectsDir),
		CheckDirectoryAccess("Assets directory", cfg.Paths.AssetsDir),
		CheckDiskSpace(ctx, "Projects disk", cfg.Paths.ProjectsDir, MinFreeDiskBytes),
		CheckMemory(ctx, MinAvailableMemoryBytes),
	)

	if opts.SkipRemote {
		return results
	}
	results = append(results,
		CheckLLM(ctx, "Script LLM", cfg.LLM),
		CheckVoiceover(ctx, "Voiceover API", cfg.Voiceover),
	)
	return results
}

// Failed reports whether any blocking check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Warning {
			return true
		}
	}
	return false
}
