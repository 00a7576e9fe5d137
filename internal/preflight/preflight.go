package preflight

import (
	"context"
	"strings"

	"tunevault/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results do not block startup when they fail.
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Music directory", cfg.Paths.MusicDir),
		CheckDirectoryAccess("Downloads directory", cfg.Paths.DownloadsDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail, Optional: status.Optional}
		if result.Passed {
			result.Detail = status.Command
		}
		results = append(results, result)
	}

	if strings.EqualFold(cfg.Queue.ClaimLockBackend, "redis") {
		results = append(results, CheckRedis(ctx, cfg.Queue.RedisURL))
	}
	if cfg.Plex.AutoScan {
		plex := CheckPlex(ctx, cfg.Plex.URL, cfg.Plex.Token)
		plex.Optional = true
		results = append(results, plex)
	}
	if cfg.Storage.Enabled {
		storage := CheckObjectStorage(ctx, cfg)
		storage.Optional = true
		results = append(results, storage)
	}
	return results
}

// Failed returns the failing results that block startup.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failed = append(failed, result)
		}
	}
	return failed
}
