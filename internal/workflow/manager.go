package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tunevault/internal/config"
	"tunevault/internal/logging"
	"tunevault/internal/notifications"
	"tunevault/internal/queue"
	"tunevault/internal/tasks"
)

// Executor runs one claimed job to completion. Implementations normally record
// their own outcome on the job row; a returned error leaves any job still
// PROCESSING marked FAILED by the manager.
type Executor interface {
	Execute(ctx context.Context, job *queue.Job, runID string) error
}

// Manager coordinates claiming and dispatching queue jobs.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	tracker  *tasks.Tracker
	executor Executor
	logger   *slog.Logger
	notifier notifications.Service

	heartbeat *HeartbeatMonitor
	slots     chan struct{}

	idlePoll        time.Duration
	dispatchDelay   time.Duration
	errorRetry      time.Duration
	releaseWhenIdle bool

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	abort    context.CancelFunc
	loopWG   sync.WaitGroup
	inflight sync.WaitGroup
	lastErr  error
	lastJob  *queue.Job
	active   int

	queueActive bool
	queueStart  time.Time
	processed   int
	failed      int
}

// NewManager constructs a manager that notifies through the configured ntfy topic.
func NewManager(cfg *config.Config, store *queue.Store, tracker *tasks.Tracker, executor Executor, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, tracker, executor, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, tracker *tasks.Tracker, executor Executor, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tracker == nil {
		tracker = tasks.NewTracker()
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	slots := cfg.Queue.MaxConcurrent
	if slots <= 0 {
		slots = 1
	}
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	return &Manager{
		cfg:      cfg,
		store:    store,
		tracker:  tracker,
		executor: executor,
		logger:   logger,
		notifier: notifier,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		slots:           make(chan struct{}, slots),
		idlePoll:        cfg.IdlePollInterval(),
		dispatchDelay:   cfg.DispatchDelay(),
		errorRetry:      time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		releaseWhenIdle: cfg.Queue.ReleaseSlotWhenIdle,
	}
}

// Tracker exposes the task registry shared with the API.
func (m *Manager) Tracker() *tasks.Tracker {
	return m.tracker
}

// Capacity returns the number of execution slots.
func (m *Manager) Capacity() int {
	return cap(m.slots)
}

// SlotsInUse returns how many slots are currently taken, including one held
// by an idle claim loop.
func (m *Manager) SlotsInUse() int {
	return len(m.slots)
}
