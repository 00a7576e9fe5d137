package downloader

import (
	"context"

	"tunevault/internal/metadata"
)

// SoundCloud downloads from soundcloud.com. It forces the best audio format
// so full tracks are fetched instead of previews.
type SoundCloud struct {
	runner *YtDlp
}

// NewSoundCloud returns the SoundCloud strategy.
func NewSoundCloud(runner *YtDlp) *SoundCloud {
	return &SoundCloud{runner: runner}
}

func (s *SoundCloud) Download(ctx context.Context, url string) (Result, error) {
	return fetchWithMetadata(ctx, s.runner, s, url, []string{"--format", "bestaudio/best"})
}

func (s *SoundCloud) ExtractMetadata(ctx context.Context, url string) (metadata.Hints, error) {
	return s.runner.Probe(ctx, url)
}
