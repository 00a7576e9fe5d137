package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// featureSeparators mark where a collaboration credit begins.
var featureSeparators = []string{",", " feat. ", " feat ", " ft. ", " ft ", " featuring "}

// MainArtist returns the primary artist of a credit such as
// "Artist feat. Guest" or "Artist, Other". Matching is case-insensitive.
func MainArtist(artist string) string {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return ""
	}
	lowered := strings.ToLower(artist)
	cut := len(artist)
	for _, sep := range featureSeparators {
		if idx := strings.Index(lowered, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	main := strings.TrimSpace(artist[:cut])
	if main == "" {
		return artist
	}
	return main
}

var folder = cases.Fold()

// FoldKey returns a caseless comparison key, so "AC/DC" and "ac/dc" match.
func FoldKey(value string) string {
	return folder.String(strings.TrimSpace(value))
}

// EqualFold reports whether a and b are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	return FoldKey(a) == FoldKey(b)
}
