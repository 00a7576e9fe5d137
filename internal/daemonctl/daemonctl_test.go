package daemonctl_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"tunevault/internal/api"
	"tunevault/internal/daemonctl"
	"tunevault/internal/testsupport"
)

func TestClientStatusAndTask(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/status":
			_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 42, Tracks: 3})
		case "/api/tasks/run-1":
			_ = json.NewEncoder(w).Encode(api.TaskView{TaskID: "run-1", Progress: 50})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "task not found"})
		}
	}))
	defer srv.Close()

	client := daemonctl.NewClientForURL(srv.URL, "secret")
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running || status.PID != 42 || status.Tracks != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}

	task, err := client.Task(context.Background(), "run-1")
	if err != nil || task.Progress != 50 {
		t.Fatalf("Task = %+v, %v", task, err)
	}
	_, err = client.Task(context.Background(), "missing")
	if !errors.Is(err, daemonctl.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientReportsDaemonNotRunning(t *testing.T) {
	client := daemonctl.NewClientForURL("http://"+closedAddr(t), "")
	if err := client.Health(context.Background()); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestNewClientRequiresBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if _, err := daemonctl.NewClient(cfg); err == nil {
		t.Fatal("expected error without bind address")
	}
	cfg.Paths.APIBind = "0.0.0.0:7487"
	if _, err := daemonctl.NewClient(cfg); err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
}

func TestProcessInfo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	alive, pid, err := daemonctl.ProcessInfo(cfg)
	if err != nil || alive || pid != 0 {
		t.Fatalf("expected no daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}

	if err := os.WriteFile(daemonctl.PIDPath(cfg), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	alive, pid, err = daemonctl.ProcessInfo(cfg)
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("expected live pid %d, got alive=%v pid=%d err=%v", os.Getpid(), alive, pid, err)
	}
	if _, err := daemonctl.Stop(cfg, 0); err == nil {
		t.Fatal("expected Stop to refuse signalling the current process")
	}

	if err := os.WriteFile(daemonctl.PIDPath(cfg), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, _, err := daemonctl.ProcessInfo(cfg); err == nil {
		t.Fatal("expected error for invalid pid file")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = closedAddr(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustEnqueue(t, store, "https://youtu.be/offline")

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg, store)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	if snapshot.Running {
		t.Fatal("offline snapshot must not report running")
	}
	if snapshot.Workflow.QueueStats["pending"] != 1 {
		t.Fatalf("expected pending count from store, got %+v", snapshot.Workflow.QueueStats)
	}
	if len(snapshot.Dependencies) != 3 {
		t.Fatalf("expected dependency checks, got %d", len(snapshot.Dependencies))
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}
