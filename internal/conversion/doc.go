// Package conversion turns a raw download into the canonical FLAC file.
//
// EnsureCanonicalForm is safe to call from any number of workers and
// processes on the same raw input. Existing output is reused, either beside
// the raw file or already filed into the music library, and the transcode
// itself runs under a per-file lock so exactly one caller pays for it while
// the others wait for its result.
package conversion
