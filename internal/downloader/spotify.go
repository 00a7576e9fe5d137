package downloader

import (
	"context"

	"tunevault/internal/metadata"
	"tunevault/internal/services"
)

// Spotify is registered so Spotify URLs fail with a clear reason instead of
// being rejected as unknown.
type Spotify struct{}

func (Spotify) Download(context.Context, string) (Result, error) {
	return Result{}, services.Wrap(services.ErrNotImplemented, stageName, "spotify", "spotify downloads are not supported yet", nil)
}

func (Spotify) ExtractMetadata(context.Context, string) (metadata.Hints, error) {
	return metadata.Hints{}, services.Wrap(services.ErrNotImplemented, stageName, "spotify", "spotify metadata is not supported yet", nil)
}
