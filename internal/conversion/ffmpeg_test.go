package conversion_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tunevault/internal/conversion"
	"tunevault/internal/testsupport"
)

func TestFFmpegTranscodeWritesOutput(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithScript("ffmpeg", `for last; do :; done
printf 'fLaC' > "$last"
`))
	out := filepath.Join(t.TempDir(), "out.flac")
	ff := conversion.FFmpeg{CompressionLevel: 8, Timeout: 5 * time.Second}
	if err := ff.Transcode(context.Background(), "in.m4a", out); err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "fLaC" {
		t.Fatalf("unexpected output %q, err=%v", data, err)
	}
}

func TestFFmpegReportsStderr(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithScript("ffmpeg", `echo "Invalid data found when processing input" >&2
exit 1
`))
	ff := conversion.FFmpeg{CompressionLevel: 8, Timeout: 5 * time.Second}
	err := ff.Transcode(context.Background(), "in.m4a", filepath.Join(t.TempDir(), "out.flac"))
	var toolErr *conversion.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.ExitCode != 1 || toolErr.Stderr != "Invalid data found when processing input" {
		t.Fatalf("unexpected tool error: %+v", toolErr)
	}
}

func TestFFprobeValidatorDetectsTruncation(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithScript("ffprobe", `echo "[mov,mp4,m4a] moov atom not found" >&2
exit 1
`))
	v := conversion.FFprobeValidator{Timeout: 5 * time.Second}
	if err := v.Validate(context.Background(), "in.m4a"); !errors.Is(err, conversion.ErrCorruptInput) {
		t.Fatalf("expected ErrCorruptInput, got %v", err)
	}
}

func TestFFprobeValidatorAcceptsAudio(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithScript("ffprobe", `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"3.0"}}
JSON
`))
	v := conversion.FFprobeValidator{Timeout: 5 * time.Second}
	if err := v.Validate(context.Background(), "in.m4a"); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestFFmpegWriteTagsReplacesFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithScript("ffmpeg", `printf '%s\n' "$@" > "$(dirname "$0")/ffmpeg.args"
for last; do :; done
printf 'tagged' > "$last"
`))
	path := filepath.Join(t.TempDir(), "Song.flac")
	testsupport.WriteFile(t, path, 64)

	ff := conversion.FFmpeg{Timeout: 5 * time.Second}
	err := ff.WriteTags(context.Background(), path, map[string]string{"title": "Song", "artist": "Band", "genre": ""})
	if err != nil {
		t.Fatalf("WriteTags failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "tagged" {
		t.Fatalf("expected rewritten file, got %q (err %v)", data, err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "Song.tags.flac")); !os.IsNotExist(err) {
		t.Fatalf("scratch file left behind: %v", err)
	}
	args, err := os.ReadFile(filepath.Join(testsupport.BaseDir(cfg), "bin", "ffmpeg.args"))
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if got := string(args); !strings.Contains(got, "artist=Band\n-metadata\ntitle=Song") || strings.Contains(got, "genre=") {
		t.Fatalf("unexpected metadata args:\n%s", got)
	}
}

func TestFFmpegWriteTagsSkipsEmptySet(t *testing.T) {
	ff := conversion.FFmpeg{Binary: "/nonexistent/ffmpeg"}
	if err := ff.WriteTags(context.Background(), "/nonexistent/a.flac", map[string]string{"title": " "}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
