package organizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tunevault/internal/config"
	"tunevault/internal/fileutil"
	"tunevault/internal/logging"
	"tunevault/internal/metadata"
	"tunevault/internal/services"
	"tunevault/internal/textutil"
)

const stageName = "organizing"

// maxCollisionSuffix bounds the ` (n)` search for a free file name.
const maxCollisionSuffix = 999

// Tagger writes container tags into a filed track.
type Tagger interface {
	WriteTags(ctx context.Context, path string, tags map[string]string) error
}

// Organizer moves tracks into the library layout.
type Organizer struct {
	musicDir     string
	includeYear  bool
	overwrite    bool
	defaultAlbum string
	tagger       Tagger
	logger       *slog.Logger
}

// New builds an organizer for the configured music directory. tagger may be nil.
func New(cfg *config.Config, tagger Tagger, logger *slog.Logger) *Organizer {
	album := strings.TrimSpace(cfg.Library.DefaultAlbum)
	if album == "" {
		album = metadata.UnknownAlbum
	}
	return &Organizer{
		musicDir:     filepath.Clean(cfg.Paths.MusicDir),
		includeYear:  cfg.Library.IncludeYearInAlbum,
		overwrite:    cfg.Library.OverwriteExisting,
		defaultAlbum: album,
		tagger:       tagger,
		logger:       logging.NewComponentLogger(logger, "organizer"),
	}
}

// Destination returns the library path for tags without touching the file
// system beyond reading the music directory for an existing artist folder.
func (o *Organizer) Destination(tags metadata.Tags, ext string) (string, error) {
	artist := textutil.CleanComponent(textutil.MainArtist(tags.Artist))
	if artist == textutil.UnknownComponent {
		artist = textutil.CleanComponent(metadata.UnknownArtist)
	}
	artist = o.resolveArtistDir(artist)

	albumName := strings.TrimSpace(tags.Album)
	if albumName == "" {
		albumName = o.defaultAlbum
	}
	album := textutil.CleanComponent(albumName)
	if o.includeYear && tags.Year > 0 {
		album = fmt.Sprintf("%s (%d)", album, tags.Year)
	}

	if ext == "" {
		ext = ".flac"
	}
	title := textutil.CleanComponent(tags.Title)
	target := filepath.Join(o.musicDir, artist, album, title+ext)
	if !o.withinLibrary(target) {
		return "", services.Wrap(services.ErrValidation, stageName, "resolve destination",
			fmt.Sprintf("destination %q escapes music dir", target), nil)
	}
	return target, nil
}

// File moves src into the library according to tags and returns the final path.
func (o *Organizer) File(ctx context.Context, src string, tags metadata.Tags) (string, error) {
	logger := logging.WithContext(ctx, o.logger).With(logging.String("source", src))

	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, stageName, "stat source", src, err)
		}
		return "", services.Wrap(services.ErrTransient, stageName, "stat source", src, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return "", services.Wrap(services.ErrValidation, stageName, "stat source",
			fmt.Sprintf("%s is empty or not a regular file", src), nil)
	}

	target, err := o.Destination(tags, filepath.Ext(src))
	if err != nil {
		return "", err
	}
	if samePath(src, target) {
		logger.Info("track already filed", logging.String("final_file", target))
		o.writeTags(ctx, target, tags)
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", o.wrapFSError("create album dir", filepath.Dir(target), err)
	}

	final := target
	if !o.overwrite {
		final, err = reserve(target)
		if err != nil {
			return "", o.wrapFSError("reserve destination", target, err)
		}
	}
	if err := fileutil.Move(src, final); err != nil {
		if !o.overwrite {
			_ = os.Remove(final)
		}
		return "", o.wrapFSError("move to library", final, err)
	}
	if err := ValidateFiled(o.musicDir, final); err != nil {
		return "", err
	}

	placement := "canonical"
	if final != target {
		placement = "collision_suffix"
	}
	logger.Info("track filed", logging.String("final_file", final), logging.String("placement", placement))
	o.writeTags(ctx, final, tags)
	return final, nil
}

func (o *Organizer) writeTags(ctx context.Context, path string, tags metadata.Tags) {
	if o.tagger == nil {
		return
	}
	values := map[string]string{
		"artist": tags.Artist,
		"album":  tags.Album,
		"title":  tags.Title,
		"genre":  tags.Genre,
	}
	if values["album"] == "" {
		values["album"] = o.defaultAlbum
	}
	if tags.Year > 0 {
		values["date"] = strconv.Itoa(tags.Year)
	}
	if err := o.tagger.WriteTags(ctx, path, values); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "tag rewrite failed",
			"organizer_tags_failed",
			logging.String("final_file", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file keeps the tags embedded at download time"),
		)
	}
}

func (o *Organizer) wrapFSError(op, path string, err error) error {
	if isLibraryUnavailable(err) {
		return services.Wrap(services.ErrConfiguration, stageName, op,
			fmt.Sprintf("music library unavailable at %s; check that the mount is present", o.musicDir), err)
	}
	return services.Wrap(services.ErrTransient, stageName, op, path, err)
}

func (o *Organizer) withinLibrary(path string) bool {
	rel, err := filepath.Rel(o.musicDir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
