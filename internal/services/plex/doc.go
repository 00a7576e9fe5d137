// Package plex asks a Plex Media Server to rescan the music library after a
// track is filed.
//
// The configured section is refreshed first. When Plex answers 404 for it the
// service lists the server's sections, picks the first music (type "artist")
// section and remembers its key for later refreshes. Refresh is disabled
// unless plex.auto_scan is set and the URL, token and section are configured.
package plex
