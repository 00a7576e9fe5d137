package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tunevault/internal/config"
	"tunevault/internal/filelock"
	"tunevault/internal/fileutil"
	"tunevault/internal/logging"
	"tunevault/internal/services"
)

const stageName = "conversion"

// Options tune the lock protocol and input checks.
type Options struct {
	MusicDir       string
	MinInputBytes  int64
	Stable         fileutil.StableOptions
	Wait           filelock.WaitOptions
	TempRenameWait time.Duration
}

// OptionsFromConfig derives Options from the conversion config section.
func OptionsFromConfig(cfg *config.Config) Options {
	conv := cfg.Conversion
	return Options{
		MusicDir:      cfg.Paths.MusicDir,
		MinInputBytes: conv.MinInputBytes,
		Stable: fileutil.StableOptions{
			MaxWait:  config.Seconds(conv.StableMaxWait),
			Interval: config.Seconds(conv.StableInterval),
			Checks:   conv.StableChecks,
		},
		Wait: filelock.WaitOptions{
			MaxWait:       config.Seconds(conv.LockMaxWait),
			PollInterval:  config.Seconds(conv.LockPollInterval),
			RetryInterval: config.Seconds(conv.LockRetryInterval),
		},
		TempRenameWait: config.Seconds(conv.StableMaxWait),
	}
}

// Converter implements the idempotent raw-to-FLAC step.
type Converter struct {
	opts       Options
	transcoder Transcoder
	validator  InputValidator
	logger     *slog.Logger
}

// NewConverter wires a converter. validator may be nil to skip input probing.
func NewConverter(opts Options, transcoder Transcoder, validator InputValidator, logger *slog.Logger) *Converter {
	return &Converter{
		opts:       opts,
		transcoder: transcoder,
		validator:  validator,
		logger:     logging.NewComponentLogger(logger, stageName),
	}
}

// New builds a converter backed by the configured ffmpeg and ffprobe binaries.
func New(cfg *config.Config, logger *slog.Logger) *Converter {
	transcoder := FFmpeg{
		Binary:           cfg.Conversion.FFmpegBinary,
		CompressionLevel: cfg.Conversion.CompressionLevel,
		Timeout:          time.Duration(cfg.Conversion.Timeout) * time.Second,
	}
	var validator InputValidator
	if cfg.Conversion.ValidateInput {
		validator = FFprobeValidator{Binary: cfg.Conversion.FFprobeBinary, Timeout: 5 * time.Second}
	}
	return NewConverter(OptionsFromConfig(cfg), transcoder, validator, logger)
}

// EnsureCanonicalForm returns the FLAC produced from rawPath. Output that
// already exists beside rawPath or in the music library is returned as is.
// Otherwise exactly one concurrent caller transcodes while the rest wait for
// the result. artworkHint names cover art to embed; when empty the
// `<stem>.webp` written by the downloader is used if present.
func (c *Converter) EnsureCanonicalForm(ctx context.Context, rawPath, artworkHint string) (string, error) {
	logger := logging.WithContext(ctx, c.logger).With(logging.String("raw_path", rawPath))

	if path, ok := c.existing(rawPath); ok {
		logger.Info("canonical flac already present", logging.String("flac_path", path))
		return path, nil
	}

	token := filelock.TokenFor(rawPath)
	held, err := filelock.TryAcquire(token)
	switch {
	case err == nil:
	case errors.Is(err, filelock.ErrBusy):
		logger.Info("another worker is converting, waiting", logging.String("lock", token))
		outcome, waitErr := filelock.WaitForReleaseOrRetry(ctx, token, func() (string, bool) {
			return c.existing(rawPath)
		}, c.opts.Wait)
		if waitErr != nil {
			if errors.Is(waitErr, filelock.ErrWaitTimeout) {
				return "", services.Wrap(services.ErrContention, stageName, "wait for converter",
					fmt.Sprintf("flac was not produced within %s", c.opts.Wait.MaxWait), waitErr)
			}
			return "", services.Wrap(services.ErrTransient, stageName, "wait for converter", "lock wait aborted", waitErr)
		}
		if outcome.Path != "" {
			logger.Info("flac produced by another worker", logging.String("flac_path", outcome.Path))
			return outcome.Path, nil
		}
		held = outcome.Held
		logger.Info("lock acquired after waiting", logging.String("lock", token))
	default:
		return "", services.Wrap(services.ErrTransient, stageName, "acquire lock", token, err)
	}

	defer func() {
		if releaseErr := held.Release(); releaseErr != nil {
			logging.WarnWithContext(logger, "failed to release conversion lock", "conversion_lock_release_failed",
				logging.String("lock", token),
				logging.Error(releaseErr),
				logging.String(logging.FieldImpact, "stale lock file left in downloads"),
			)
		}
	}()
	return c.convertHeld(ctx, logger, rawPath, artworkHint)
}

// existing reports a finished FLAC beside rawPath or in the music library.
// A raw download that is itself a .flac is never treated as finished output.
func (c *Converter) existing(rawPath string) (string, bool) {
	canonical := CanonicalPath(rawPath)
	if canonical != rawPath && fileutil.NonEmptyFile(canonical) {
		return canonical, true
	}
	return FindInLibrary(c.opts.MusicDir, filepath.Base(canonical))
}

func (c *Converter) convertHeld(ctx context.Context, logger *slog.Logger, rawPath, artworkHint string) (string, error) {
	// Another worker may have finished between the first check and the lock.
	if path, ok := c.existing(rawPath); ok {
		return path, nil
	}

	if err := c.ensureRawPresent(ctx, logger, rawPath); err != nil {
		return "", err
	}

	if err := fileutil.WaitUntilStable(ctx, rawPath, c.opts.Stable); err != nil {
		marker := services.ErrTimeout
		if !errors.Is(err, fileutil.ErrNotStable) {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, stageName, "stabilize input", "raw download still being written", err)
	}

	info, err := os.Stat(rawPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, stageName, "stat input", rawPath, err)
	}
	if info.Size() == 0 {
		return "", services.Wrap(services.ErrValidation, stageName, "check input", fmt.Sprintf("raw file is empty: %s", rawPath), nil)
	}
	if info.Size() < c.opts.MinInputBytes {
		return "", services.Wrap(services.ErrValidation, stageName, "check input",
			fmt.Sprintf("raw file is too small (%d bytes), likely corrupted: %s", info.Size(), rawPath), nil)
	}

	if c.validator != nil {
		if err := c.validator.Validate(ctx, rawPath); err != nil {
			if errors.Is(err, ErrCorruptInput) {
				return "", services.Wrap(services.ErrValidation, stageName, "validate input", "ffprobe rejected raw file", err)
			}
			logging.WarnWithContext(logger, "input validation skipped", "conversion_validation_skipped",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that ffprobe is installed"),
			)
		}
	}

	canonical := CanonicalPath(rawPath)
	partial := PartialPath(rawPath)
	logger.Info("converting to flac", logging.String("flac_path", canonical), logging.Int64("raw_bytes", info.Size()))
	started := time.Now()
	if err := c.transcoder.Transcode(ctx, rawPath, partial); err != nil {
		if !fileutil.NonEmptyFile(partial) {
			_ = os.Remove(partial)
			return "", services.Wrap(services.ErrExternalTool, stageName, "transcode", "flac conversion failed", err)
		}
		logging.WarnWithContext(logger, "transcoder reported an error but produced output", "conversion_nonzero_exit",
			logging.Error(err),
			logging.String(logging.FieldImpact, "using produced flac"),
		)
	}
	if !fileutil.NonEmptyFile(partial) {
		_ = os.Remove(partial)
		if path, ok := FindInLibrary(c.opts.MusicDir, filepath.Base(canonical)); ok {
			return path, nil
		}
		return "", services.Wrap(services.ErrExternalTool, stageName, "transcode", "flac file was not created", nil)
	}

	artwork := c.resolveArtwork(rawPath, artworkHint)
	if artwork != "" {
		if err := c.transcoder.EmbedArtwork(ctx, partial, artwork); err != nil {
			logging.WarnWithContext(logger, "cover art not embedded", "conversion_artwork_failed",
				logging.String("artwork", artwork),
				logging.Error(err),
				logging.String(logging.FieldImpact, "track filed without cover art"),
			)
		}
	}

	// Waiters treat any non-empty canonical file as finished, so it only
	// appears once fully written.
	if err := os.Rename(partial, canonical); err != nil {
		_ = os.Remove(partial)
		return "", services.Wrap(services.ErrTransient, stageName, "publish flac", canonical, err)
	}

	if rawPath != canonical {
		c.removeScratch(logger, rawPath)
	}
	if artwork != "" {
		c.removeScratch(logger, artwork)
	}
	logger.Info("flac conversion complete",
		logging.String("flac_path", canonical),
		logging.Duration("elapsed", time.Since(started)),
	)
	return canonical, nil
}

// ensureRawPresent handles a raw file that yt-dlp has not yet renamed from
// its `.temp` form.
func (c *Converter) ensureRawPresent(ctx context.Context, logger *slog.Logger, rawPath string) error {
	if _, err := os.Stat(rawPath); err == nil {
		return nil
	}
	ext := filepath.Ext(rawPath)
	temp := strings.TrimSuffix(rawPath, ext) + ".temp" + ext
	if _, err := os.Stat(temp); err != nil {
		return services.Wrap(services.ErrNotFound, stageName, "locate input",
			fmt.Sprintf("raw file already processed or missing: %s", rawPath), nil)
	}

	logger.Info("waiting for temporary download to be renamed", logging.String("temp_path", temp))
	deadline := time.Now().Add(c.opts.TempRenameWait)
	interval := c.opts.Stable.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if _, err := os.Stat(rawPath); err == nil {
			return nil
		}
	}
	if err := os.Rename(temp, rawPath); err != nil {
		return services.Wrap(services.ErrNotFound, stageName, "locate input", "temporary download could not be renamed", err)
	}
	logging.WarnWithContext(logger, "renamed stalled temporary download", "conversion_temp_renamed",
		logging.String("temp_path", temp),
		logging.String(logging.FieldImpact, "converting possibly incomplete download"),
	)
	return nil
}

func (c *Converter) resolveArtwork(rawPath, hint string) string {
	if hint = strings.TrimSpace(hint); hint != "" && fileutil.NonEmptyFile(hint) {
		return hint
	}
	webp := strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".webp"
	if fileutil.NonEmptyFile(webp) {
		return webp
	}
	return ""
}

func (c *Converter) removeScratch(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.WarnWithContext(logger, "could not remove scratch file", "conversion_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scratch file left in downloads"),
		)
	}
}
