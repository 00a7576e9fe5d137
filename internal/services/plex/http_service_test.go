package plex_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tunevault/internal/logging"
	"tunevault/internal/services/plex"
	"tunevault/internal/testsupport"
)

type plexServer struct {
	mu       sync.Mutex
	requests []string
	valid    string
	sections string
}

func (p *plexServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests = append(p.requests, r.Method+" "+r.URL.Path)
		p.mu.Unlock()
		if r.Header.Get("X-Plex-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/library/sections":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(p.sections))
		case "/library/sections/" + p.valid + "/refresh":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST refresh, got %s", r.Method)
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (p *plexServer) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

const sectionsXML = `<MediaContainer size="2"><Directory key="1" type="movie" title="Movies"/><Directory key="7" type="artist" title="Music"/></MediaContainer>`

func TestRefreshConfiguredSection(t *testing.T) {
	srv := &plexServer{valid: "3", sections: sectionsXML}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	svc := plex.NewHTTPService(server.URL, "secret", "3", server.Client(), logging.NewNop())
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := srv.seen(); len(got) != 1 || got[0] != "POST /library/sections/3/refresh" {
		t.Fatalf("unexpected requests %v", got)
	}
}

func TestRefreshDiscoversMusicSectionOn404(t *testing.T) {
	srv := &plexServer{valid: "7", sections: sectionsXML}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	svc := plex.NewHTTPService(server.URL, "secret", "99", server.Client(), logging.NewNop())
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	want := []string{
		"POST /library/sections/99/refresh",
		"GET /library/sections",
		"POST /library/sections/7/refresh",
		"POST /library/sections/7/refresh",
	}
	got := srv.seen()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("requests = %v, want %v", got, want)
		}
	}
}

func TestRefreshWithoutMusicSection(t *testing.T) {
	srv := &plexServer{valid: "x", sections: `<MediaContainer><Directory key="1" type="movie" title="Movies"/></MediaContainer>`}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	svc := plex.NewHTTPService(server.URL, "secret", "99", server.Client(), logging.NewNop())
	if err := svc.Refresh(context.Background()); !errors.Is(err, plex.ErrNoMusicSection) {
		t.Fatalf("expected ErrNoMusicSection, got %v", err)
	}
}

func TestRefreshReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := plex.NewHTTPService(server.URL, "secret", "1", server.Client(), logging.NewNop())
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestNewConfiguredService(t *testing.T) {
	tests := []struct {
		name    string
		opts    []testsupport.ConfigOption
		enabled bool
	}{
		{"auto scan off", nil, false},
		{"fully configured", []testsupport.ConfigOption{testsupport.WithPlex("http://plex:32400", "secret", "1")}, true},
		{"missing token", []testsupport.ConfigOption{testsupport.WithPlex("http://plex:32400", "", "1")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, tt.opts...)
			svc := plex.NewConfiguredService(cfg, logging.NewNop())
			if svc.Enabled() != tt.enabled {
				t.Fatalf("Enabled() = %v, want %v", svc.Enabled(), tt.enabled)
			}
			if !tt.enabled {
				if err := svc.Refresh(context.Background()); err != nil {
					t.Fatalf("disabled Refresh should be a no-op, got %v", err)
				}
			}
		})
	}
}

func TestSectionsParsesDirectories(t *testing.T) {
	srv := &plexServer{sections: sectionsXML}
	server := httptest.NewServer(srv.handler(t))
	defer server.Close()

	svc := plex.NewHTTPService(server.URL, "secret", "1", server.Client(), logging.NewNop())
	sections, err := svc.Sections(context.Background())
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}
	if len(sections) != 2 || sections[1] != (plex.Section{Key: "7", Title: "Music", Type: "artist"}) {
		t.Fatalf("unexpected sections %+v", sections)
	}
}
