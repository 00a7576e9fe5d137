// Package organizer files transcoded tracks into the music library.
//
// Tracks land at `<music_dir>/<Artist>/<Album (Year)>/<Title>.flac`. The
// artist folder uses the main credit only, so collaborations share one
// folder, and an existing folder that differs only by case is reused.
// Destinations are reserved atomically; a name already taken gets a ` (n)`
// suffix unless overwriting is enabled. Tags are rewritten after the move
// when a Tagger is configured; tag failures never fail the filing.
package organizer
