// Package textutil normalizes free-form metadata text and turns it into safe
// path components for the music library.
//
// Tag values coming from yt-dlp or embedded FLAC tags are normalized with
// NormalizeTag before they are merged or stored. Folder and file names are
// derived with CleanComponent, and MainArtist strips featured-artist credits
// so collaborations file under the primary artist.
package textutil
