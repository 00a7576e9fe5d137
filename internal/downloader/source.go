package downloader

import "strings"

// Source identifies the platform a URL belongs to.
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceSpotify    Source = "spotify"
	SourceSoundCloud Source = "soundcloud"
	SourceUnknown    Source = "unknown"
)

// Detect classifies url by host substring.
func Detect(url string) Source {
	lowered := strings.ToLower(url)
	switch {
	case strings.Contains(lowered, "youtube.com"),
		strings.Contains(lowered, "youtu.be"),
		strings.Contains(lowered, "music.youtube.com"):
		return SourceYouTube
	case strings.Contains(lowered, "spotify.com"):
		return SourceSpotify
	case strings.Contains(lowered, "soundcloud.com"):
		return SourceSoundCloud
	default:
		return SourceUnknown
	}
}

// ParseSource converts a stored source tag back into a Source. Unrecognized
// or empty tags return SourceUnknown and false.
func ParseSource(tag string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(tag))) {
	case SourceYouTube:
		return SourceYouTube, true
	case SourceSpotify:
		return SourceSpotify, true
	case SourceSoundCloud:
		return SourceSoundCloud, true
	default:
		return SourceUnknown, false
	}
}

// Resolve prefers a valid stored tag and otherwise detects from url.
func Resolve(url, tag string) Source {
	if source, ok := ParseSource(tag); ok {
		return source
	}
	return Detect(url)
}
