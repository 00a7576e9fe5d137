package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tunevault/internal/config"
	"tunevault/internal/fileutil"
	"tunevault/internal/logging"
	"tunevault/internal/metadata"
	"tunevault/internal/services"
)

const (
	tempRenamePoll     = 500 * time.Millisecond
	processWaitDelay   = 5 * time.Second
	maxReportedLines   = 5
	defaultYtDlpBinary = "yt-dlp"
)

var (
	audioExtensions   = []string{".flac", ".m4a", ".opus", ".mp3", ".webm", ".ogg", ".aac", ".wav"}
	artworkExtensions = []string{".webp", ".jpg", ".jpeg", ".png"}
	fatalMarkers      = []string{"ERROR:", "error:", "Did not get any data blocks", "No video formats found"}
)

// YtDlp runs the yt-dlp binary on behalf of the source strategies.
type YtDlp struct {
	binary          string
	downloadsDir    string
	audioFormat     string
	timeout         time.Duration
	metadataTimeout time.Duration
	stable          fileutil.StableOptions
	tempRenameWait  time.Duration
	logger          *slog.Logger
}

// NewYtDlp builds a runner from the download config section.
func NewYtDlp(cfg *config.Config, logger *slog.Logger) *YtDlp {
	dl := cfg.Download
	binary := strings.TrimSpace(dl.YtDlpBinary)
	if binary == "" {
		binary = defaultYtDlpBinary
	}
	format := strings.TrimSpace(dl.AudioFormat)
	if format == "" {
		format = "m4a"
	}
	stable := fileutil.StableOptions{
		MaxWait:  config.Seconds(dl.StableMaxWait),
		Interval: config.Seconds(dl.StableInterval),
		Checks:   dl.StableChecks,
	}
	return &YtDlp{
		binary:          binary,
		downloadsDir:    cfg.Paths.DownloadsDir,
		audioFormat:     format,
		timeout:         time.Duration(dl.Timeout) * time.Second,
		metadataTimeout: time.Duration(dl.MetadataTimeout) * time.Second,
		stable:          stable,
		tempRenameWait:  stable.MaxWait,
		logger:          logging.NewComponentLogger(logger, stageName),
	}
}

func uniqueSuffix() string {
	return fmt.Sprintf("%d_%s", time.Now().Unix(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Fetch downloads url into the downloads directory and returns the audio
// artifact and any sidecar artwork yt-dlp wrote next to it.
func (y *YtDlp) Fetch(ctx context.Context, url string, extra []string) (audio, artwork string, err error) {
	if err := os.MkdirAll(y.downloadsDir, 0o755); err != nil {
		return "", "", services.Wrap(services.ErrConfiguration, stageName, "prepare", "create downloads dir", err)
	}
	logger := logging.WithContext(ctx, y.logger).With(logging.String("url", url))

	suffix := uniqueSuffix()
	template := filepath.Join(y.downloadsDir, "%(title)s_"+suffix+".%(ext)s")
	args := []string{"-x", "--audio-format", y.audioFormat, "--audio-quality", "0"}
	args = append(args, extra...)
	args = append(args,
		"--postprocessor-args", "ffmpeg:-vn",
		"--embed-metadata",
		"--embed-thumbnail",
		"--add-metadata",
		"--write-thumbnail",
		"--no-warnings",
		"--ignore-errors",
		"--no-playlist",
		"-o", template,
		url,
	)

	runCtx := ctx
	if y.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, y.binary, args...)
	cmd.WaitDelay = processWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", "", services.Wrap(services.ErrTimeout, stageName, "yt-dlp",
			fmt.Sprintf("download exceeded %s", y.timeout), runCtx.Err())
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return "", "", services.Wrap(services.ErrConfiguration, stageName, "yt-dlp",
			fmt.Sprintf("%s is not installed or not on PATH", y.binary), runErr)
	}

	audio, artwork, err = y.locate(ctx, suffix)
	if err != nil {
		return "", "", err
	}

	if runErr != nil {
		output := stderr.String()
		if strings.TrimSpace(output) == "" {
			output = stdout.String()
		}
		if audio == "" {
			if lines := FatalLines(output); len(lines) > 0 {
				return "", "", services.Wrap(services.ErrExternalTool, stageName, "yt-dlp",
					strings.Join(lines, "\n"), runErr)
			}
			return "", "", services.Wrap(services.ErrExternalTool, stageName, "yt-dlp",
				"no file was downloaded and yt-dlp returned an error", runErr)
		}
		logger.Warn("yt-dlp exited nonzero but produced a file; waiting for it to settle",
			logging.String(logging.FieldEventType, "download_nonzero_exit"),
			logging.String("path", audio),
			logging.Error(runErr),
		)
		if err := fileutil.WaitUntilStable(ctx, audio, y.stable); err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			logger.Warn("download size did not settle; continuing",
				logging.String(logging.FieldEventType, "download_unstable"),
				logging.String("path", audio),
				logging.String(logging.FieldImpact, "conversion re-checks stability before transcoding"),
			)
		}
	}

	if audio == "" {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "yt-dlp",
			"download completed but no file was found", nil)
	}
	logger.Info("download finished",
		logging.String("path", audio),
		logging.Duration("elapsed", time.Since(start)),
	)
	return audio, artwork, nil
}

// locate finds the artifacts carrying suffix. A lone `.temp.<ext>` file is
// given time to be renamed by yt-dlp and is renamed manually otherwise.
func (y *YtDlp) locate(ctx context.Context, suffix string) (audio, artwork string, err error) {
	audio, temp, artwork, err := scanArtifacts(y.downloadsDir, suffix)
	if err != nil || audio != "" || temp == "" {
		return audio, artwork, err
	}

	final := strings.TrimSuffix(temp, ".temp"+filepath.Ext(temp)) + filepath.Ext(temp)
	deadline := time.Now().Add(y.tempRenameWait)
	for time.Now().Before(deadline) {
		if fileutil.NonEmptyFile(final) {
			return final, artwork, nil
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(tempRenamePoll):
		}
	}
	if fileutil.NonEmptyFile(final) {
		return final, artwork, nil
	}
	if err := os.Rename(temp, final); err != nil {
		y.logger.Warn("could not rename temp download; using it as is",
			logging.String(logging.FieldEventType, "download_temp_rename_failed"),
			logging.String("path", temp),
			logging.Error(err),
		)
		return temp, artwork, nil
	}
	y.logger.Info("renamed stalled temp download", logging.String("path", final))
	return final, artwork, nil
}

func scanArtifacts(dir, suffix string) (audio, temp, artwork string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", "", fmt.Errorf("scan downloads dir: %w", err)
	}
	marker := "_" + suffix + "."
	var newest time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.Contains(name, marker) {
			continue
		}
		path := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), ".temp"):
			if hasExt(audioExtensions, ext) {
				temp = path
			}
		case hasExt(audioExtensions, ext):
			info, statErr := entry.Info()
			if statErr != nil {
				continue
			}
			if audio == "" || info.ModTime().After(newest) {
				audio = path
				newest = info.ModTime()
			}
		case hasExt(artworkExtensions, ext):
			artwork = path
		}
	}
	return audio, temp, artwork, nil
}

func hasExt(list []string, ext string) bool {
	for _, candidate := range list {
		if candidate == ext {
			return true
		}
	}
	return false
}

// FatalLines keeps the lines of yt-dlp output that describe a real failure.
// Warnings are dropped and at most five lines are returned.
func FatalLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "WARNING:") {
			continue
		}
		for _, marker := range fatalMarkers {
			if strings.Contains(line, marker) {
				lines = append(lines, line)
				break
			}
		}
		if len(lines) == maxReportedLines {
			break
		}
	}
	return lines
}

// Probe reads item metadata with `yt-dlp --dump-json`.
func (y *YtDlp) Probe(ctx context.Context, url string) (metadata.Hints, error) {
	runCtx := ctx
	if y.metadataTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, y.metadataTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, y.binary, "--dump-json", "--no-warnings", url)
	cmd.WaitDelay = processWaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return metadata.Hints{}, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return metadata.Hints{}, services.Wrap(services.ErrTimeout, stageName, "dump metadata",
				fmt.Sprintf("exceeded %s", y.metadataTimeout), err)
		}
		return metadata.Hints{}, services.Wrap(services.ErrExternalTool, stageName, "dump metadata",
			strings.Join(FatalLines(stderr.String()), "\n"), err)
	}
	if len(bytes.TrimSpace(output)) == 0 {
		return metadata.Hints{}, services.Wrap(services.ErrExternalTool, stageName, "dump metadata", "empty output", nil)
	}
	return ParseInfo(output)
}
