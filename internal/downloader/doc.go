// Package downloader fetches remote media items into the downloads directory.
//
// A Service routes each URL to a Strategy chosen by source. The YouTube and
// SoundCloud strategies drive yt-dlp with a unique `_<epoch>_<8hex>` output
// suffix so concurrent fetches of different items never collide, then locate
// the artifact by that suffix. A nonzero yt-dlp exit is tolerated when the
// artifact exists and its size settles. Metadata comes from
// `yt-dlp --dump-json`; YouTube falls back to the kkdai/youtube client.
package downloader
