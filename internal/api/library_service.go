package api

import (
	"context"
	"fmt"
	"math"

	"tunevault/internal/library"
	"tunevault/internal/services"
)

// Catalog is the library surface the API reads and prunes.
type Catalog interface {
	List(ctx context.Context, limit int) ([]*library.Track, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, q library.SearchQuery, limit int) ([]*library.Track, error)
	Stats(ctx context.Context) (library.Stats, error)
	Delete(ctx context.Context, id int64) (*library.Track, error)
}

// LibraryService serves track listings, search, stats and removal.
type LibraryService struct {
	catalog Catalog
}

// NewLibraryService constructs a LibraryService, or nil without a catalog.
func NewLibraryService(catalog Catalog) *LibraryService {
	if catalog == nil {
		return nil
	}
	return &LibraryService{catalog: catalog}
}

// List returns up to limit tracks and the catalog total.
func (s *LibraryService) List(ctx context.Context, limit int) (TrackListResponse, error) {
	tracks, err := s.catalog.List(ctx, limit)
	if err != nil {
		return TrackListResponse{}, err
	}
	total, err := s.catalog.Count(ctx)
	if err != nil {
		return TrackListResponse{}, err
	}
	return TrackListResponse{Items: FromTracks(tracks), Total: total}, nil
}

// Search returns matching tracks; Total is the number of matches returned.
func (s *LibraryService) Search(ctx context.Context, q library.SearchQuery, limit int) (TrackListResponse, error) {
	tracks, err := s.catalog.Search(ctx, q, limit)
	if err != nil {
		return TrackListResponse{}, err
	}
	items := FromTracks(tracks)
	return TrackListResponse{Items: items, Total: len(items)}, nil
}

// Stats reports catalog totals with the size also in gigabytes.
func (s *LibraryService) Stats(ctx context.Context) (LibraryStats, error) {
	stats, err := s.catalog.Stats(ctx)
	if err != nil {
		return LibraryStats{}, err
	}
	return FromLibraryStats(stats), nil
}

// Delete removes a track and its file. A missing id is ErrNotFound.
func (s *LibraryService) Delete(ctx context.Context, id int64) (TrackDeleteResponse, error) {
	track, err := s.catalog.Delete(ctx, id)
	if err != nil {
		return TrackDeleteResponse{}, err
	}
	if track == nil {
		return TrackDeleteResponse{}, services.Wrap(services.ErrNotFound, "library", "delete track", fmt.Sprintf("track %d not found", id), nil)
	}
	return TrackDeleteResponse{
		Message: fmt.Sprintf("Deleted %s - %s", track.Artist, track.Title),
		Track:   FromTrack(track),
	}, nil
}

// FromLibraryStats converts catalog totals; gigabytes are rounded to two places.
func FromLibraryStats(stats library.Stats) LibraryStats {
	gb := float64(stats.TotalBytes) / (1 << 30)
	return LibraryStats{
		TotalTracks:    stats.Tracks,
		TotalArtists:   stats.Artists,
		TotalAlbums:    stats.Albums,
		TotalSizeBytes: stats.TotalBytes,
		TotalSizeGB:    math.Round(gb*100) / 100,
	}
}
