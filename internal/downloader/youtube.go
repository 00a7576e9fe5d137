package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/kkdai/youtube/v2"

	"tunevault/internal/logging"
	"tunevault/internal/metadata"
)

// VideoLookup resolves YouTube video details without yt-dlp.
type VideoLookup interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
}

// YouTube downloads from youtube.com, youtu.be and music.youtube.com.
type YouTube struct {
	runner *YtDlp
	lookup VideoLookup
}

// NewYouTube returns the YouTube strategy. A nil lookup uses the
// kkdai/youtube client.
func NewYouTube(runner *YtDlp, lookup VideoLookup) *YouTube {
	if lookup == nil {
		lookup = &youtube.Client{}
	}
	return &YouTube{runner: runner, lookup: lookup}
}

func (y *YouTube) Download(ctx context.Context, url string) (Result, error) {
	return fetchWithMetadata(ctx, y.runner, y, url, nil)
}

// ExtractMetadata prefers yt-dlp and falls back to the YouTube player API.
func (y *YouTube) ExtractMetadata(ctx context.Context, url string) (metadata.Hints, error) {
	hints, err := y.runner.Probe(ctx, url)
	if err == nil {
		return hints, nil
	}
	if ctx.Err() != nil {
		return metadata.Hints{}, ctx.Err()
	}
	y.runner.logger.Info("yt-dlp metadata unavailable; trying youtube client",
		logging.String("url", url),
		logging.Error(err),
	)
	video, lookupErr := y.lookup.GetVideoContext(ctx, url)
	if lookupErr != nil {
		return metadata.Hints{}, errors.Join(err, fmt.Errorf("youtube lookup: %w", lookupErr))
	}
	return HintsFromVideo(video), nil
}

// HintsFromVideo maps a kkdai/youtube video onto download hints.
func HintsFromVideo(video *youtube.Video) metadata.Hints {
	if video == nil {
		return metadata.Hints{}
	}
	hints := metadata.Hints{
		Title:    video.Title,
		Uploader: video.Author,
		Album:    AlbumFromDescription(video.Description),
		Duration: video.Duration.Seconds(),
	}
	if !video.PublishDate.IsZero() {
		hints.Year = video.PublishDate.Year()
	}
	if n := len(video.Thumbnails); n > 0 {
		hints.Thumbnail = video.Thumbnails[n-1].URL
	}
	return hints
}

// fetchWithMetadata gathers hints first; missing metadata never blocks the download.
func fetchWithMetadata(ctx context.Context, runner *YtDlp, strategy Strategy, url string, extra []string) (Result, error) {
	hints, err := strategy.ExtractMetadata(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logging.WarnWithContext(logging.WithContext(ctx, runner.logger), "metadata extraction failed; continuing without hints",
			"download_metadata_missing",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldImpact, "tags come from the downloaded file only"),
		)
		hints = metadata.Hints{}
	}
	audio, artwork, err := runner.Fetch(ctx, url, extra)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: audio, Artwork: artwork, Hints: hints}, nil
}
