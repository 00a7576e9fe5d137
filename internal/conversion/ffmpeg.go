package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"tunevault/internal/media/ffprobe"
)

// Transcoder produces FLAC output and embeds cover art.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string) error
	EmbedArtwork(ctx context.Context, audioPath, artworkPath string) error
}

// InputValidator inspects a raw file before it is transcoded. Errors wrapping
// ErrCorruptInput are fatal; any other error is logged and ignored.
type InputValidator interface {
	Validate(ctx context.Context, path string) error
}

// ErrCorruptInput marks raw input that cannot produce a usable FLAC.
var ErrCorruptInput = errors.New("raw input is incomplete or corrupted")

// ToolError reports a failed external command with its trimmed stderr.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s failed (code %d): %v", e.Tool, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s failed (code %d): %s", e.Tool, e.ExitCode, e.Stderr)
}

func (e *ToolError) Unwrap() error { return e.Err }

// FFmpeg transcodes with the ffmpeg CLI.
type FFmpeg struct {
	Binary           string
	CompressionLevel int
	Timeout          time.Duration
}

func (f FFmpeg) binary() string {
	if strings.TrimSpace(f.Binary) == "" {
		return "ffmpeg"
	}
	return f.Binary
}

// Transcode writes output as FLAC from the first audio stream of input.
func (f FFmpeg) Transcode(ctx context.Context, input, output string) error {
	args := []string{
		"-i", input,
		"-map", "0:a:0",
		"-c:a", "flac",
		"-compression_level", strconv.Itoa(f.CompressionLevel),
		"-y",
		"-loglevel", "error",
		output,
	}
	return f.run(ctx, args)
}

// EmbedArtwork attaches artworkPath as the front cover of audioPath. The
// picture is re-encoded to JPEG since FLAC players rarely handle WebP covers.
func (f FFmpeg) EmbedArtwork(ctx context.Context, audioPath, artworkPath string) error {
	tmp := strings.TrimSuffix(audioPath, ".flac") + ".cover.flac"
	args := []string{
		"-i", audioPath,
		"-i", artworkPath,
		"-map", "0:a",
		"-map", "1:v",
		"-c:a", "copy",
		"-c:v", "mjpeg",
		"-disposition:v", "attached_pic",
		"-metadata:s:v", "comment=Cover (front)",
		"-y",
		"-loglevel", "error",
		tmp,
	}
	if err := f.run(ctx, args); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, audioPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace audio with covered copy: %w", err)
	}
	return nil
}

// WriteTags rewrites the container tags of a FLAC file in place. Empty
// values are skipped; streams are copied untouched.
func (f FFmpeg) WriteTags(ctx context.Context, path string, tags map[string]string) error {
	keys := make([]string, 0, len(tags))
	for key, value := range tags {
		if strings.TrimSpace(value) != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	tmp := strings.TrimSuffix(path, ".flac") + ".tags.flac"
	args := []string{"-i", path, "-map", "0", "-c", "copy"}
	for _, key := range keys {
		args = append(args, "-metadata", key+"="+tags[key])
	}
	args = append(args, "-y", "-loglevel", "error", tmp)
	if err := f.run(ctx, args); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace audio with tagged copy: %w", err)
	}
	return nil
}

func (f FFmpeg) run(ctx context.Context, args []string) error {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, f.binary(), args...)
	cmd.WaitDelay = 5 * time.Second
	var stderr, stdout bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stdout
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("ffmpeg timed out after %s: %w", f.Timeout, ctx.Err())
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		msg = strings.TrimSpace(stdout.String())
	}
	toolErr := &ToolError{Tool: "ffmpeg", ExitCode: -1, Stderr: msg, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	return toolErr
}

// FFprobeValidator rejects M4A files whose index is missing.
type FFprobeValidator struct {
	Binary  string
	Timeout time.Duration
}

// Validate probes path. A truncated container or a file without audio is
// reported as ErrCorruptInput.
func (v FFprobeValidator) Validate(ctx context.Context, path string) error {
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	result, err := ffprobe.Inspect(ctx, v.Binary, path)
	if err != nil {
		var inspectErr *ffprobe.InspectError
		if errors.As(err, &inspectErr) && inspectErr.Truncated() {
			return fmt.Errorf("%w: %s: %s", ErrCorruptInput, path, inspectErr.Stderr)
		}
		return err
	}
	if result.AudioStreamCount() == 0 {
		return fmt.Errorf("%w: %s has no audio stream", ErrCorruptInput, path)
	}
	return nil
}
