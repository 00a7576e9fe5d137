package downloader

import (
	"context"
	"fmt"
	"log/slog"

	"tunevault/internal/config"
	"tunevault/internal/logging"
	"tunevault/internal/metadata"
	"tunevault/internal/services"
)

const stageName = "download"

// Result describes a fetched artifact.
type Result struct {
	Path    string
	Artwork string
	Source  Source
	Hints   metadata.Hints
}

// Strategy downloads items of one source.
type Strategy interface {
	Download(ctx context.Context, url string) (Result, error)
	ExtractMetadata(ctx context.Context, url string) (metadata.Hints, error)
}

// Service routes URLs to the strategy for their source.
type Service struct {
	strategies map[Source]Strategy
	logger     *slog.Logger
}

// NewService wires explicit strategies.
func NewService(strategies map[Source]Strategy, logger *slog.Logger) *Service {
	return &Service{
		strategies: strategies,
		logger:     logging.NewComponentLogger(logger, stageName),
	}
}

// New builds the default strategy set from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Service {
	runner := NewYtDlp(cfg, logger)
	return NewService(map[Source]Strategy{
		SourceYouTube:    NewYouTube(runner, nil),
		SourceSoundCloud: NewSoundCloud(runner),
		SourceSpotify:    Spotify{},
	}, logger)
}

// Download resolves the source from tag or url and fetches the item.
func (s *Service) Download(ctx context.Context, url, tag string) (Result, error) {
	source := Resolve(url, tag)
	strategy, ok := s.strategies[source]
	if !ok {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "route",
			fmt.Sprintf("unsupported source %q", source), nil)
	}
	logging.WithContext(ctx, s.logger).Info("download starting",
		logging.String("url", url),
		logging.String("source", string(source)),
	)
	result, err := strategy.Download(ctx, url)
	if err != nil {
		return Result{}, err
	}
	result.Source = source
	return result, nil
}

// Supported reports whether a strategy is registered for source.
func (s *Service) Supported(source Source) bool {
	_, ok := s.strategies[source]
	return ok
}
