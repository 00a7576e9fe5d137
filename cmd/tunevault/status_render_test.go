package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"tunevault/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []api.DependencyStatus{
		{Name: "FFmpeg", Available: false},
		{Name: "yt-dlp", Available: true, Command: "yt-dlp"},
		{Name: "Plex", Available: false, Optional: true, Detail: "not configured"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] not available") {
		t.Fatalf("expected error detail first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: yt-dlp)") {
		t.Fatalf("expected ready detail second, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] not configured") {
		t.Fatalf("expected optional warning third, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "FFmpeg, Plex") {
		t.Fatalf("expected missing summary, got %q", lines[3])
	}
}

func TestDaemonLinesRunning(t *testing.T) {
	status := api.DaemonStatus{
		Running: true,
		PID:     42,
		Workflow: api.WorkflowStatus{
			Slots:      4,
			SlotsInUse: 1,
			InFlight:   1,
			LastError:  "download failed",
			LastItem:   &api.QueueItem{ID: 7, URL: "https://youtu.be/x", Title: "Song", Status: "failed"},
		},
	}
	lines := daemonLines(status, false)
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Running (pid 42)", "1 of 4 in use", "#7 Song (failed)", "[ERROR] download failed"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in:\n%s", want, joined)
		}
	}
}

func TestBuildQueueStatusRowsOrdersByLifecycle(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"failed": 2, "pending": 3, "completed": 0})
	if len(rows) != 2 || rows[0][0] != "pending" || rows[1][0] != "failed" || rows[1][1] != "2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"ID", "Title"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Title") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
