package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"tunevault/internal/logging"
	"tunevault/internal/media/ffprobe"
	"tunevault/internal/services"
	"tunevault/internal/textutil"
)

const (
	// UnknownArtist is used when neither the file nor the source names one.
	UnknownArtist = "Unknown Artist"
	// UnknownAlbum is the album fallback when the source carries none.
	UnknownAlbum = "Unknown Album"
)

var yearPattern = regexp.MustCompile(`\d{4}`)

// Tags is the normalized description of one audio file.
type Tags struct {
	Artist   string
	Album    string
	Title    string
	Genre    string
	Year     int
	Duration int
	FileSize int64
}

// Hints are the values a download source reported for an item.
type Hints struct {
	Title     string
	Artist    string
	Uploader  string
	Channel   string
	Album     string
	Thumbnail string
	Year      int
	Duration  float64
}

// BestArtist returns the first non-empty of artist, uploader and channel.
func (h Hints) BestArtist() string {
	for _, candidate := range []string{h.Artist, h.Uploader, h.Channel} {
		if value := textutil.NormalizeTag(candidate); value != "" {
			return value
		}
	}
	return ""
}

// Extractor reads tags with ffprobe.
type Extractor struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor returns an extractor using the given ffprobe binary.
func NewExtractor(binary string, timeout time.Duration, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{
		binary:  binary,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "metadata"),
	}
}

// Extract returns the tags stored in path. A missing file is an error; an
// unreadable container degrades to UnknownArtist with no other tags so the
// job can still be filed from download hints.
func (e *Extractor) Extract(ctx context.Context, path string) (Tags, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tags{}, services.Wrap(services.ErrNotFound, "metadata", "extract", path, err)
		}
		return Tags{}, fmt.Errorf("stat %s: %w", path, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, err := ffprobe.Inspect(probeCtx, e.binary, path)
	if err != nil {
		if ctx.Err() != nil {
			return Tags{}, ctx.Err()
		}
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "metadata extraction failed; using file name",
			"metadata_fallback",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "artist and album fall back to download hints"),
		)
		return fallbackTags(info.Size()), nil
	}

	return FromProbe(result, info.Size()), nil
}

// FromProbe converts an ffprobe result into Tags.
func FromProbe(result ffprobe.Result, size int64) Tags {
	tags := Tags{
		Artist:   textutil.NormalizeTag(result.Tag("artist", "album_artist", "TPE1")),
		Album:    textutil.NormalizeTag(result.Tag("album", "TALB")),
		Title:    textutil.NormalizeTag(result.Tag("title", "TIT2")),
		Genre:    textutil.NormalizeTag(result.Tag("genre", "TCON")),
		Year:     ParseYear(result.Tag("date", "year", "TDRC", "TYER")),
		Duration: int(result.DurationSeconds()),
		FileSize: size,
	}
	if tags.Duration < 0 {
		tags.Duration = 0
	}
	return tags
}

func fallbackTags(size int64) Tags {
	return Tags{Artist: UnknownArtist, FileSize: size}
}

// ParseYear returns the first four-digit run in value, or 0.
func ParseYear(value string) int {
	match := yearPattern.FindString(value)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// Merge reconciles file tags with download hints. An artist reported by the
// source wins; uploader and channel only fill a missing artist. The source
// album wins over the file's, and UnknownAlbum is the last resort. fallbackTitle
// is used when neither side has a title.
func Merge(file Tags, hints Hints, fallbackTitle string) Tags {
	merged := file
	merged.Artist = textutil.NormalizeTag(merged.Artist)
	merged.Album = textutil.NormalizeTag(merged.Album)
	merged.Title = textutil.NormalizeTag(merged.Title)
	merged.Genre = textutil.NormalizeTag(merged.Genre)

	if artist := textutil.NormalizeTag(hints.Artist); artist != "" {
		merged.Artist = artist
	} else if merged.Artist == "" || merged.Artist == UnknownArtist {
		if artist := hints.BestArtist(); artist != "" {
			merged.Artist = artist
		}
	}
	if merged.Artist == "" {
		merged.Artist = UnknownArtist
	}

	if merged.Title == "" {
		merged.Title = textutil.NormalizeTag(hints.Title)
	}
	if merged.Title == "" {
		merged.Title = textutil.NormalizeTag(fallbackTitle)
	}

	if album := textutil.NormalizeTag(hints.Album); album != "" {
		merged.Album = album
	}
	if merged.Album == "" {
		merged.Album = UnknownAlbum
	}

	if merged.Year == 0 && hints.Year > 0 {
		merged.Year = hints.Year
	}
	if merged.Duration == 0 && hints.Duration > 0 {
		merged.Duration = int(hints.Duration)
	}
	return merged
}
