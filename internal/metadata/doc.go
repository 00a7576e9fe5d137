// Package metadata reads tags from transcoded audio and reconciles them with
// the hints gathered by the downloader before the file is filed.
//
// File tags come from ffprobe. Download hints fill gaps: artist and title only
// when the file carries none, album always when the source knows one, year
// when missing. Every value passes through textutil.NormalizeTag.
package metadata
