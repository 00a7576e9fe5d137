package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunevault/internal/preflight"
	"tunevault/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		path string
		pass bool
	}{
		{name: "temp dir", path: t.TempDir(), pass: true},
		{name: "missing", path: filepath.Join(t.TempDir(), "nope")},
		{name: "file", path: file},
		{name: "blank", path: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := preflight.CheckDirectoryAccess("test", tt.path)
			if result.Passed != tt.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tt.pass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckPlex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Plex-Token") {
		case "good":
			_, _ = w.Write([]byte(`<MediaContainer><Directory key="3" title="Music" type="artist"/></MediaContainer>`))
		case "movies":
			_, _ = w.Write([]byte(`<MediaContainer><Directory key="1" title="Films" type="movie"/></MediaContainer>`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		url     string
		token   string
		pass    bool
		contain string
	}{
		{name: "music section", url: srv.URL, token: "good", pass: true, contain: "Music"},
		{name: "no music section", url: srv.URL, token: "movies", contain: "no music library section"},
		{name: "bad token", url: srv.URL, token: "bad", contain: "401"},
		{name: "missing url", token: "good", contain: "missing url"},
		{name: "missing token", url: srv.URL, contain: "missing token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := preflight.CheckPlex(context.Background(), tt.url, tt.token)
			if result.Passed != tt.pass || !strings.Contains(result.Detail, tt.contain) {
				t.Fatalf("unexpected result: %+v", result)
			}
		})
	}
}

func TestCheckRedisInvalidURL(t *testing.T) {
	result := preflight.CheckRedis(context.Background(), "not a url")
	if result.Passed || !strings.Contains(result.Detail, "invalid url") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunAllPassesWithStubbedToolchain(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	results := preflight.RunAll(context.Background(), cfg)
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("expected every check to pass, got %+v", failed)
	}
	if len(results) != 6 {
		t.Fatalf("expected directory and binary checks only, got %d results", len(results))
	}
}

func TestRunAllReportsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	cfg.Download.YtDlpBinary = "missing-yt-dlp"
	failed := preflight.Failed(preflight.RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "yt-dlp" {
		t.Fatalf("expected yt-dlp failure, got %+v", failed)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if results := preflight.RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil, got %+v", results)
	}
}
