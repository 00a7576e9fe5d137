package tasks

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the fine-grained lifecycle of a Task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// IsTerminal reports whether the task has finished.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const initialMessage = "initializing"

// Task is a snapshot of one execution attempt.
type Task struct {
	RunID     string    `json:"task_id"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	ResultRef int64     `json:"track_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update carries optional changes. Nil fields are left untouched.
type Update struct {
	Status    *Status
	Progress  *int
	Message   *string
	Error     *string
	ResultRef *int64
}

// Tracker is a concurrency-safe in-memory registry of tasks.
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{tasks: make(map[string]*Task), now: time.Now}
}

// Create registers a PENDING task for url and returns its run id.
func (t *Tracker) Create(url string) string {
	runID := uuid.NewString()
	ts := t.now()
	t.mu.Lock()
	t.tasks[runID] = &Task{
		RunID:     runID,
		URL:       strings.TrimSpace(url),
		Status:    StatusPending,
		Message:   initialMessage,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	t.mu.Unlock()
	return runID
}

// Update applies u to the task. Progress is clamped to [0,100] and a non-empty
// error forces StatusFailed regardless of u.Status. Unknown run ids report false.
func (t *Tracker) Update(runID string, u Update) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[runID]
	if !ok {
		return false
	}
	if u.Status != nil && *u.Status != "" {
		task.Status = *u.Status
	}
	if u.Progress != nil {
		task.Progress = clamp(*u.Progress)
	}
	if u.Message != nil && strings.TrimSpace(*u.Message) != "" {
		task.Message = strings.TrimSpace(*u.Message)
	}
	if u.Error != nil && strings.TrimSpace(*u.Error) != "" {
		task.Error = strings.TrimSpace(*u.Error)
	}
	if task.Error != "" {
		task.Status = StatusFailed
	}
	if u.ResultRef != nil && *u.ResultRef != 0 {
		task.ResultRef = *u.ResultRef
	}
	task.UpdatedAt = t.now()
	return true
}

// Get returns a copy of the task.
func (t *Tracker) Get(runID string) (Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[runID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Delete removes the task. Missing ids are ignored.
func (t *Tracker) Delete(runID string) {
	t.mu.Lock()
	delete(t.tasks, runID)
	t.mu.Unlock()
}

// DeleteMany removes every listed task and returns how many existed.
func (t *Tracker) DeleteMany(runIDs []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for _, id := range runIDs {
		if _, ok := t.tasks[id]; ok {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}

// List returns copies of every task, oldest first.
func (t *Tracker) List() []Task {
	t.mu.RLock()
	out := make([]Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, *task)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of tracked tasks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tasks)
}

// CleanupOlderThan drops finished tasks whose last update is older than age.
func (t *Tracker) CleanupOlderThan(age time.Duration) int {
	cutoff := t.now().Add(-age)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, task := range t.tasks {
		if task.Status.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}

func clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
