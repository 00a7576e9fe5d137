package api

import (
	"context"
	"fmt"
	"strings"

	"tunevault/internal/downloader"
	"tunevault/internal/services"
)

// PlaylistExpander lists the tracks behind an album or playlist URL.
type PlaylistExpander interface {
	ExpandPlaylist(ctx context.Context, url string) ([]downloader.PlaylistEntry, error)
}

// WithPlaylistExpander enables EnqueuePlaylist.
func (s *QueueService) WithPlaylistExpander(expander PlaylistExpander) *QueueService {
	s.playlists = expander
	return s
}

// EnqueuePlaylist expands url into its tracks and enqueues each one with
// its listed title, following the same rules as EnqueueMany.
func (s *QueueService) EnqueuePlaylist(ctx context.Context, url, sourceTag string) (PlaylistEnqueueResponse, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return PlaylistEnqueueResponse{}, services.Wrap(services.ErrValidation, "queue", "enqueue playlist", "url must not be empty", nil)
	}
	if _, err := validateSource(url, sourceTag); err != nil {
		return PlaylistEnqueueResponse{}, err
	}
	if s.playlists == nil {
		return PlaylistEnqueueResponse{}, services.Wrap(services.ErrConfiguration, "queue", "enqueue playlist", "playlist expansion is not available", nil)
	}

	entries, err := s.playlists.ExpandPlaylist(ctx, url)
	if err != nil {
		return PlaylistEnqueueResponse{}, err
	}
	urls := make([]string, 0, len(entries))
	titles := make([]string, 0, len(entries))
	for _, entry := range entries {
		urls = append(urls, entry.URL)
		titles = append(titles, entry.Title)
	}
	items, err := s.EnqueueMany(ctx, urls, sourceTag, titles)
	if err != nil {
		return PlaylistEnqueueResponse{}, err
	}
	size, err := s.Size(ctx)
	if err != nil {
		return PlaylistEnqueueResponse{}, err
	}

	created := 0
	for _, item := range items {
		if item.Created {
			created++
		}
	}
	return PlaylistEnqueueResponse{
		Message:   fmt.Sprintf("Queued %d of %d tracks", created, len(items)),
		URLsCount: len(items),
		Created:   created,
		QueueSize: size,
		Items:     items,
	}, nil
}
