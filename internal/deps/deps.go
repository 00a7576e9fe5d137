// Package deps resolves the external binaries tunevault shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"tunevault/internal/config"
)

// Requirement names one external tool and the command used to run it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the result of resolving a Requirement on PATH.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable when Available.
	Path   string
	Detail string
}

// Requirements lists the binaries the download and conversion steps execute.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     orDefault(cfg.Download.YtDlpBinary, "yt-dlp"),
			Description: "Downloads audio from YouTube and SoundCloud",
		},
		{
			Name:        "FFmpeg",
			Command:     orDefault(cfg.Conversion.FFmpegBinary, "ffmpeg"),
			Description: "Transcodes downloads to FLAC and writes tags",
		},
		{
			Name:        "FFprobe",
			Command:     orDefault(cfg.Conversion.FFprobeBinary, "ffprobe"),
			Description: "Validates inputs and reads embedded tags",
		},
	}
}

// Check resolves one requirement.
func Check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Check(req)
	}
	return results
}

// MissingRequired returns the unavailable non-optional entries of statuses.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
