// Package ffprobe wraps the ffprobe CLI for audio inspection: container
// duration and size, stream layout and the embedded tag dictionary.
package ffprobe
