package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"tunevault/internal/api"
	"tunevault/internal/config"
	"tunevault/internal/downloader"
	"tunevault/internal/library"
	"tunevault/internal/logging"
	"tunevault/internal/notifications"
	"tunevault/internal/preflight"
	"tunevault/internal/queue"
	"tunevault/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	catalog  *library.Catalog
	workflow *workflow.Manager
	queueSvc *api.QueueService
	tracks   *api.LibraryService
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, catalog *library.Catalog, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || catalog == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, catalog, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		catalog:  catalog,
		workflow: wf,
		queueSvc: api.NewQueueService(store, catalog, wf.Tracker(), wf).
			WithPlaylistExpander(downloader.NewYtDlp(cfg, logging.NewComponentLogger(logger, "playlist"))),
		tracks:   api.NewLibraryService(catalog),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logging.NewComponentLogger(logger, "api-server"))
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and serves the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tunevault daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("tunevault daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.cfg.DatabasePath()),
		logging.String("api", d.APIAddr()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing, waiting for in-flight jobs, and releases the daemon lock.
func (d *Daemon) Stop() {
	_ = d.Shutdown(context.Background())
}

// Shutdown is Stop bounded by ctx. Jobs still running when ctx ends are
// cancelled and recorded as FAILED.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if !d.running.Load() {
		return nil
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	err := d.workflow.Shutdown(ctx)
	if err != nil {
		d.logger.Warn("workflow shutdown deadline reached; in-flight jobs cancelled", logging.Error(err))
	}
	if unlockErr := d.lock.Unlock(); unlockErr != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(unlockErr))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("tunevault daemon stopped")
	return err
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// QueueService exposes the queue surface shared with the HTTP API.
func (d *Daemon) QueueService() *api.QueueService {
	return d.queueSvc
}

// APIAddr returns the bound HTTP address, or "" when the API is disabled or stopped.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		LibraryDir:   d.cfg.Paths.MusicDir,
		Workflow:     api.FromStatusSummary(d.workflow.Status(ctx)),
	}
	if count, err := d.catalog.Count(ctx); err == nil {
		status.Tracks = count
	} else {
		d.logger.Warn("failed to count library tracks", logging.Error(err))
	}
	for _, dep := range preflight.CheckSystemDeps(d.cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return status
}
