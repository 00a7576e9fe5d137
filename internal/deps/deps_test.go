package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"tunevault/internal/deps"
	"tunevault/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" || results[0].Path != present {
		t.Fatalf("expected first requirement to resolve to %s, got %#v", present, results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Path != "" || results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := deps.MissingRequired(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestRequirementsFollowConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg", "ffprobe"))
	results := deps.CheckBinaries(deps.Requirements(cfg))
	if len(results) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(results))
	}
	for _, status := range results {
		if !status.Available {
			t.Fatalf("expected stub %s to be found: %s", status.Command, status.Detail)
		}
	}

	cfg.Conversion.FFprobeBinary = "not-a-real-ffprobe"
	missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(cfg)))
	if len(missing) != 1 || missing[0].Name != "FFprobe" {
		t.Fatalf("expected ffprobe to be reported missing, got %#v", missing)
	}
}

func TestRequirementsNilConfig(t *testing.T) {
	if reqs := deps.Requirements(nil); reqs != nil {
		t.Fatalf("expected no requirements, got %#v", reqs)
	}
}
