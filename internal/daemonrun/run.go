// Package daemonrun assembles the tunevault daemon from configuration and
// runs it until the process receives SIGINT or SIGTERM.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tunevault/internal/config"
	"tunevault/internal/conversion"
	"tunevault/internal/daemon"
	"tunevault/internal/downloader"
	"tunevault/internal/library"
	"tunevault/internal/logging"
	"tunevault/internal/metadata"
	"tunevault/internal/mirror"
	"tunevault/internal/notifications"
	"tunevault/internal/organizer"
	"tunevault/internal/pipeline"
	"tunevault/internal/preflight"
	"tunevault/internal/queue"
	"tunevault/internal/services/plex"
	"tunevault/internal/tasks"
	"tunevault/internal/workflow"
)

// defaultShutdownGrace bounds how long in-flight jobs may finish after a signal.
const defaultShutdownGrace = 2 * time.Minute

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight starts even when required checks fail.
	SkipPreflight bool
	// ShutdownGrace overrides defaultShutdownGrace when positive.
	ShutdownGrace time.Duration
}

// Run starts the tunevault daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.DaemonLogPath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := runPreflight(signalCtx, cfg, logger); err != nil && !opts.SkipPreflight {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, "tunevaultd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg, queue.WithLogger(logger))
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	catalog, err := library.Open(signalCtx, store.DB())
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open library catalog: %w", err)
	}

	notifier := notifications.NewService(cfg)
	tracker := tasks.NewTracker()
	executor, err := BuildExecutor(cfg, store, catalog, tracker, notifier, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	manager := workflow.NewManagerWithNotifier(cfg, store, tracker, executor, logger, notifier)

	d, err := daemon.New(cfg, store, catalog, manager, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the API bind address"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("tunevault daemon shutting down")

	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = defaultShutdownGrace
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()
	if err := d.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// BuildExecutor wires the download, conversion, tagging, filing, catalog,
// mirror and Plex steps into a pipeline executor.
func BuildExecutor(cfg *config.Config, store *queue.Store, catalog *library.Catalog, tracker *tasks.Tracker, notifier notifications.Service, logger *slog.Logger) (*pipeline.Executor, error) {
	objectMirror, err := mirror.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("configure object mirror: %w", err)
	}
	tagger := conversion.FFmpeg{
		Binary:  cfg.Conversion.FFmpegBinary,
		Timeout: time.Duration(cfg.Conversion.Timeout) * time.Second,
	}
	return pipeline.New(pipeline.Deps{
		Jobs:       store,
		Tasks:      tracker,
		Downloader: downloader.New(cfg, logger),
		Converter:  conversion.New(cfg, logger),
		Tags: metadata.NewExtractor(
			cfg.Conversion.FFprobeBinary,
			time.Duration(cfg.Download.MetadataTimeout)*time.Second,
			logger,
		),
		Filer:    organizer.New(cfg, tagger, logger),
		Catalog:  catalog,
		Mirror:   objectMirror,
		Plex:     plex.NewConfiguredService(cfg, logger),
		Notifier: notifier,
		MusicDir: cfg.Paths.MusicDir,
	}, logger), nil
}

func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		attrs := []logging.Attr{
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		}
		switch {
		case result.Passed:
			logger.Info("preflight check passed", logging.Args(attrs...)...)
		case result.Optional:
			logging.WarnWithContext(logger, "preflight check failed", "preflight_optional_failed",
				append(attrs, logging.String(logging.FieldImpact, "feature disabled until the service is reachable"))...)
		default:
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed", attrs...)
		}
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, result := range failed {
		names = append(names, result.Name)
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
