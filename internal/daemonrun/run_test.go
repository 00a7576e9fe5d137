package daemonrun

import (
	"context"
	"strings"
	"testing"

	"tunevault/internal/library"
	"tunevault/internal/logging"
	"tunevault/internal/notifications"
	"tunevault/internal/tasks"
	"tunevault/internal/testsupport"
)

func TestBuildExecutorWiresDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	catalog, err := library.Open(context.Background(), store.DB())
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	executor, err := BuildExecutor(cfg, store, catalog, tasks.NewTracker(), notifications.NewService(cfg), logging.NewNop())
	if err != nil {
		t.Fatalf("BuildExecutor failed: %v", err)
	}
	if executor == nil {
		t.Fatal("expected an executor")
	}
}

func TestBuildExecutorRejectsIncompleteStorage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Enabled = true
	cfg.Storage.Endpoint = ""
	store := testsupport.MustOpenStore(t, cfg)
	catalog, err := library.Open(context.Background(), store.DB())
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	if _, err := BuildExecutor(cfg, store, catalog, tasks.NewTracker(), nil, nil); err == nil {
		t.Fatal("expected storage configuration error")
	}
}

func TestRunPreflightNamesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	if err := runPreflight(context.Background(), cfg, logging.NewNop()); err != nil {
		t.Fatalf("expected preflight to pass, got %v", err)
	}

	cfg.Conversion.FFmpegBinary = "no-such-ffmpeg"
	err := runPreflight(context.Background(), cfg, logging.NewNop())
	if err == nil || !strings.Contains(err.Error(), "FFmpeg") {
		t.Fatalf("expected FFmpeg failure, got %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
