package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tunevault/internal/api"
	"tunevault/internal/config"
	"tunevault/internal/preflight"
	"tunevault/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// PIDPath is where the daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "tunevaultd.pid")
}

// Launch starts a detached tunevaultd process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	var args []string
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// DaemonExecutable finds tunevaultd next to the running binary, then on PATH.
func DaemonExecutable() (string, error) {
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "tunevaultd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("tunevaultd")
	if err != nil {
		return "", fmt.Errorf("tunevaultd not found next to this binary or on PATH: %w", err)
	}
	return path, nil
}

// WaitForAPI polls the health endpoint until it answers or timeout elapses.
func WaitForAPI(ctx context.Context, client *Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if lastErr = client.Health(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return StartResult{}, err
	}
	if client.Health(ctx) == nil {
		_, pid, _ := ProcessInfo(cfg)
		return StartResult{State: StartStateAlreadyRunning, PID: pid}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForAPI(ctx, client, waitTimeout); err != nil {
		return StartResult{}, err
	}
	_, pid, _ := ProcessInfo(cfg)
	return StartResult{State: StartStateStarted, PID: pid}, nil
}

// ProcessInfo reads the pid file and reports whether that process is alive.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	data, err := os.ReadFile(PIDPath(cfg))
	if errors.Is(err, os.ErrNotExist) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("read daemon pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0, fmt.Errorf("invalid daemon pid file %s", PIDPath(cfg))
	}
	return processAlive(pid), pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Stop sends SIGTERM so the daemon drains in-flight jobs, and SIGKILLs it if
// it is still alive after gracePeriod.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	alive, pid, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !alive {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return result, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err := proc.Kill(); err != nil {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	_ = os.Remove(PIDPath(cfg))
	result.ForcedKill = true
	return result, nil
}

// BuildStatusSnapshot asks the daemon for its status and falls back to the
// store and local dependency checks when the daemon is not reachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config, store *queue.Store) (api.DaemonStatus, error) {
	if client, err := NewClient(cfg); err == nil {
		status, statusErr := client.Status(ctx)
		if statusErr == nil {
			return status, nil
		}
		if !errors.Is(statusErr, ErrDaemonNotRunning) {
			return api.DaemonStatus{}, statusErr
		}
	}

	snapshot := api.DaemonStatus{
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.DaemonLockPath(),
		LibraryDir:   cfg.Paths.MusicDir,
	}
	if store != nil {
		stats, err := store.Stats(ctx)
		if err != nil {
			return api.DaemonStatus{}, err
		}
		snapshot.Workflow.QueueStats = api.MergeQueueStats(stats)
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		snapshot.Dependencies = append(snapshot.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return snapshot, nil
}
