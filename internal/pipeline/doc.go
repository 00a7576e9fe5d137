// Package pipeline runs one claimed job from URL to catalogued library track.
//
// The Executor drives the download, FLAC conversion, tag merge, library
// filing and catalog steps in order, publishing fixed progress milestones to
// both the in-memory task and the durable job row. Mirroring, Plex refreshes
// and notifications run after the track is catalogued and never fail a job.
package pipeline
