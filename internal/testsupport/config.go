package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tunevault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Lock and stabilization waits are shortened so contention tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MusicDir = filepath.Join(base, "music")
	cfgVal.Paths.DownloadsDir = filepath.Join(base, "downloads")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Queue.IdlePollInterval = 0.02
	cfgVal.Queue.DispatchDelay = 0
	cfgVal.Download.StableInterval = 0.01
	cfgVal.Download.StableMaxWait = 1
	cfgVal.Conversion.ValidateInput = false
	cfgVal.Conversion.LockPollInterval = 0.01
	cfgVal.Conversion.LockRetryInterval = 0.1
	cfgVal.Conversion.LockMaxWait = 2
	cfgVal.Conversion.StableInterval = 0.01
	cfgVal.Conversion.StableMaxWait = 1
	cfgVal.Plex.AutoScan = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxConcurrent overrides the scheduler slot count.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxConcurrent = n
	}
}

// WithPlex points the config at a Plex server and enables auto scan.
func WithPlex(url, token, sectionID string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.URL = url
		b.cfg.Plex.Token = token
		b.cfg.Plex.LibrarySectionID = sectionID
		b.cfg.Plex.AutoScan = true
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, the default external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg", "ffprobe"}
		}
		for _, name := range names {
			writeStub(b, name, "exit 0\n")
		}
		prependPath(b)
	}
}

// WithScript writes an executable shell script named name whose body follows
// the shebang line, and prepends its directory to PATH.
func WithScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		writeStub(b, name, body)
		prependPath(b)
	}
}

func binDir(b *configBuilder) string {
	return filepath.Join(b.baseDir, "bin")
}

func writeStub(b *configBuilder, name, body string) {
	dir := binDir(b)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	script := []byte("#!/bin/sh\n" + body)
	if err := os.WriteFile(filepath.Join(dir, name), script, 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
}

func prependPath(b *configBuilder) {
	dir := binDir(b)
	oldPath := os.Getenv("PATH")
	if strings.HasPrefix(oldPath, dir+string(os.PathListSeparator)) {
		return
	}
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
