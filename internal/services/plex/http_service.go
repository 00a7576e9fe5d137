package plex

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tunevault/internal/config"
	"tunevault/internal/logging"
)

const (
	requestTimeout = 10 * time.Second
	userAgent      = "tunevault/0.1.0"
	musicType      = "artist"
)

// errSectionNotFound marks a 404 from the refresh endpoint.
var errSectionNotFound = errors.New("plex section not found")

// NewConfiguredService returns the HTTP service when auto scan is enabled and
// Plex is fully configured, and a disabled service otherwise.
func NewConfiguredService(cfg *config.Config, logger *slog.Logger) Service {
	plexURL := strings.TrimRight(strings.TrimSpace(cfg.Plex.URL), "/")
	token := strings.TrimSpace(cfg.Plex.Token)
	section := strings.TrimSpace(cfg.Plex.LibrarySectionID)
	if !cfg.Plex.AutoScan || plexURL == "" || token == "" || section == "" {
		return disabledService{}
	}
	return NewHTTPService(plexURL, token, section, &http.Client{Timeout: requestTimeout}, logger)
}

// NewHTTPService builds a service against baseURL.
func NewHTTPService(baseURL, token, sectionID string, client *http.Client, logger *slog.Logger) *HTTPService {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &HTTPService{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		sectionID: sectionID,
		client:    client,
		logger:    logging.NewComponentLogger(logger, "plex"),
	}
}

// HTTPService talks to the Plex HTTP API.
type HTTPService struct {
	baseURL   string
	token     string
	sectionID string
	client    *http.Client
	logger    *slog.Logger

	mu         sync.Mutex
	discovered string
}

func (s *HTTPService) Enabled() bool { return true }

// Refresh triggers a scan of the music section.
func (s *HTTPService) Refresh(ctx context.Context) error {
	key := s.currentSection()
	err := s.refreshSection(ctx, key)
	if !errors.Is(err, errSectionNotFound) {
		return err
	}

	s.logger.Warn("configured plex section not found; searching for the music section",
		logging.String(logging.FieldEventType, "plex_section_missing"),
		logging.String("section_id", key),
	)
	found, err := s.findMusicSection(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.discovered = found.Key
	s.mu.Unlock()
	s.logger.Info("using discovered plex music section",
		logging.String("section_id", found.Key),
		logging.String("section_title", found.Title),
	)
	return s.refreshSection(ctx, found.Key)
}

func (s *HTTPService) currentSection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discovered != "" {
		return s.discovered
	}
	return s.sectionID
}

func (s *HTTPService) refreshSection(ctx context.Context, key string) error {
	refreshURL := fmt.Sprintf("%s/library/sections/%s/refresh", s.baseURL, key)
	req, err := s.newRequest(ctx, http.MethodPost, refreshURL)
	if err != nil {
		return fmt.Errorf("build plex refresh request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh plex library: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", errSectionNotFound, key)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("plex refresh returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	s.logger.Info("plex library refresh requested", logging.String("section_id", key))
	return nil
}

// Sections lists the server's library sections.
func (s *HTTPService) Sections(ctx context.Context) ([]Section, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.baseURL+"/library/sections")
	if err != nil {
		return nil, fmt.Errorf("build plex sections request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch plex sections: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("plex sections returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var container struct {
		Directories []Section `xml:"Directory"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode plex sections: %w", err)
	}
	return container.Directories, nil
}

func (s *HTTPService) findMusicSection(ctx context.Context) (Section, error) {
	sections, err := s.Sections(ctx)
	if err != nil {
		return Section{}, err
	}
	for _, section := range sections {
		if section.Type == musicType && section.Key != "" {
			return section, nil
		}
	}
	return Section{}, ErrNoMusicSection
}

func (s *HTTPService) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}
