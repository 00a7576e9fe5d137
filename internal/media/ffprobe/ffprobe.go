package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Duration    string            `json:"duration"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// InspectError carries ffprobe's stderr so callers can classify failures.
type InspectError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *InspectError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("ffprobe %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("ffprobe %s: %v: %s", e.Path, e.Err, e.Stderr)
}

func (e *InspectError) Unwrap() error { return e.Err }

// Truncated reports whether ffprobe rejected the file as incomplete, which
// happens when an MP4/M4A is read before its moov atom was written.
func (e *InspectError) Truncated() bool {
	lowered := strings.ToLower(e.Stderr)
	return strings.Contains(lowered, "moov atom not found") || strings.Contains(lowered, "invalid data")
}

// Inspect executes ffprobe against path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Result{}, &InspectError{Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Tag returns the first non-empty format tag matching one of keys,
// compared case-insensitively. Audio stream tags are consulted when the
// container carries none.
func (r Result) Tag(keys ...string) string {
	if value := lookupTag(r.Format.Tags, keys); value != "" {
		return value
	}
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		if value := lookupTag(stream.Tags, keys); value != "" {
			return value
		}
	}
	return ""
}

func lookupTag(tags map[string]string, keys []string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range keys {
		for name, value := range tags {
			if strings.EqualFold(name, key) && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// HasAttachedPicture reports whether cover art is embedded.
func (r Result) HasAttachedPicture() bool {
	for _, stream := range r.Streams {
		if stream.Disposition["attached_pic"] == 1 {
			return true
		}
	}
	return false
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
