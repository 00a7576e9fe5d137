package plex

import (
	"context"
	"errors"
)

// ErrNoMusicSection is returned when the server has no music library.
var ErrNoMusicSection = errors.New("plex: no music library section found")

// Section is one Plex library section.
type Section struct {
	Key   string `xml:"key,attr" json:"key"`
	Title string `xml:"title,attr" json:"title"`
	Type  string `xml:"type,attr" json:"type"`
}

// Service refreshes the music library.
type Service interface {
	Enabled() bool
	Refresh(ctx context.Context) error
	Sections(ctx context.Context) ([]Section, error)
}

// disabledService is used when auto scan is off or Plex is not configured.
type disabledService struct{}

func (disabledService) Enabled() bool                 { return false }
func (disabledService) Refresh(context.Context) error { return nil }
func (disabledService) Sections(context.Context) ([]Section, error) {
	return nil, errors.New("plex is not configured")
}
