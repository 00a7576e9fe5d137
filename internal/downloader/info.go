package downloader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"tunevault/internal/metadata"
)

var descriptionAlbum = regexp.MustCompile(`[Aa]lbum\s*:?\s*([^\n]+)`)

// ytdlpInfo is the subset of the yt-dlp info JSON used here.
type ytdlpInfo struct {
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	Uploader      string  `json:"uploader"`
	Channel       string  `json:"channel"`
	Album         string  `json:"album"`
	AlbumArtist   string  `json:"album_artist"`
	Playlist      string  `json:"playlist"`
	PlaylistTitle string  `json:"playlist_title"`
	Series        string  `json:"series"`
	Description   string  `json:"description"`
	Thumbnail     string  `json:"thumbnail"`
	Duration      float64 `json:"duration"`
	ReleaseYear   *int    `json:"release_year"`
	UploadDate    string  `json:"upload_date"`
}

// ParseInfo converts one yt-dlp info JSON document into hints. When yt-dlp
// prints several documents only the first is read.
func ParseInfo(data []byte) (metadata.Hints, error) {
	var info ytdlpInfo
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return metadata.Hints{}, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	hints := metadata.Hints{
		Title:     strings.TrimSpace(info.Title),
		Artist:    strings.TrimSpace(info.Artist),
		Uploader:  strings.TrimSpace(info.Uploader),
		Channel:   strings.TrimSpace(info.Channel),
		Album:     albumFromInfo(info),
		Thumbnail: info.Thumbnail,
		Duration:  info.Duration,
	}
	switch {
	case info.ReleaseYear != nil && *info.ReleaseYear > 0:
		hints.Year = *info.ReleaseYear
	case len(info.UploadDate) >= 4:
		hints.Year = metadata.ParseYear(info.UploadDate[:4])
	}
	return hints, nil
}

func albumFromInfo(info ytdlpInfo) string {
	for _, candidate := range []string{info.Album, info.Playlist, info.PlaylistTitle, info.Series, info.AlbumArtist} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return AlbumFromDescription(info.Description)
}

// AlbumFromDescription extracts an "Album: name" line from free text.
func AlbumFromDescription(description string) string {
	match := descriptionAlbum.FindStringSubmatch(description)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}
