package conversion

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"tunevault/internal/fileutil"
)

// uniqueSuffix matches the `_<epoch>_<8hex>` tag downloads carry to avoid
// collisions between concurrently started fetches of the same title.
var uniqueSuffix = regexp.MustCompile(`^(.+?)_\d+_[a-f0-9]{8}\.flac$`)

var errFound = errors.New("found")

// CanonicalPath returns the FLAC path that sits beside rawPath.
func CanonicalPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".flac"
}

// PartialPath is where the transcoder writes before the result is published
// under CanonicalPath.
func PartialPath(rawPath string) string {
	return strings.TrimSuffix(rawPath, filepath.Ext(rawPath)) + ".partial.flac"
}

// BaseName strips the unique download suffix from a FLAC file name.
func BaseName(flacName string) string {
	if m := uniqueSuffix.FindStringSubmatch(flacName); m != nil {
		return m[1] + ".flac"
	}
	return flacName
}

// FindInLibrary walks musicDir for a non-empty FLAC named either flacName or
// its suffix-stripped base name.
func FindInLibrary(musicDir, flacName string) (string, bool) {
	if strings.TrimSpace(musicDir) == "" {
		return "", false
	}
	base := BaseName(flacName)
	var match string
	err := filepath.WalkDir(musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped rather than aborting the search.
			if d != nil && d.IsDir() && path != musicDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".flac") {
			return nil
		}
		name := d.Name()
		if name != base && name != flacName {
			return nil
		}
		if fileutil.NonEmptyFile(path) {
			match = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", false
	}
	return match, match != ""
}
