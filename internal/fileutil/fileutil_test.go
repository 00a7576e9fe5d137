package fileutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	dst := filepath.Join(dir, "dst.flac")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileVerifiedKeepsModeAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.flac")
	dst := filepath.Join(dir, "out", "dst.flac")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("fLaC"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only dst in target dir, got %d entries", len(entries))
	}
}

func TestMoveCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "track.flac")
	dst := filepath.Join(dir, "Artist", "Album (2020)", "Track.flac")
	if err := os.WriteFile(src, []byte("flac"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Move(src, dst); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat err=%v", err)
	}
	if !NonEmptyFile(dst) {
		t.Fatal("expected destination to exist")
	}
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if NonEmptyFile(empty) || NonEmptyFile(filepath.Join(dir, "missing")) || NonEmptyFile(dir) {
		t.Fatal("expected empty, missing and directory paths to be rejected")
	}
}

func TestWaitUntilStableSucceedsOnQuietFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := StableOptions{MaxWait: time.Second, Interval: 5 * time.Millisecond, Checks: 3}
	if err := WaitUntilStable(context.Background(), path, opts); err != nil {
		t.Fatalf("WaitUntilStable failed: %v", err)
	}
}

func TestWaitUntilStableTimesOutOnEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.m4a")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	opts := StableOptions{MaxWait: 50 * time.Millisecond, Interval: 5 * time.Millisecond, Checks: 2}
	err := WaitUntilStable(context.Background(), path, opts)
	if !errors.Is(err, ErrNotStable) {
		t.Fatalf("expected ErrNotStable, got %v", err)
	}
}

func TestWaitUntilStableWaitsForGrowingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.m4a")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_, _ = f.Write([]byte("chunk"))
			time.Sleep(5 * time.Millisecond)
		}
		_ = f.Close()
	}()

	opts := StableOptions{MaxWait: 2 * time.Second, Interval: 5 * time.Millisecond, Checks: 8}
	if err := WaitUntilStable(context.Background(), path, opts); err != nil {
		t.Fatalf("WaitUntilStable failed: %v", err)
	}
	<-done
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(len("chunk")*5) {
		t.Fatalf("returned before writer finished: size %d", info.Size())
	}
}

func TestWaitUntilStableHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := StableOptions{MaxWait: time.Second, Interval: 5 * time.Millisecond, Checks: 2}
	if err := WaitUntilStable(ctx, filepath.Join(t.TempDir(), "missing"), opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
