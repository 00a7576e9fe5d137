package workflow

import (
	"context"

	"tunevault/internal/logging"
	"tunevault/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool                 `json:"running"`
	Slots       int                  `json:"slots"`
	SlotsInUse  int                  `json:"slots_in_use"`
	InFlight    int                  `json:"in_flight"`
	TrackedRuns int                  `json:"tracked_tasks"`
	LastError   string               `json:"last_error,omitempty"`
	LastJob     *queue.Job           `json:"last_job,omitempty"`
	QueueStats  map[queue.Status]int `json:"queue_stats"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:  m.running,
		Slots:    cap(m.slots),
		InFlight: m.active,
		LastJob:  m.lastJob.Clone(),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	summary.SlotsInUse = len(m.slots)
	summary.TrackedRuns = m.tracker.Len()
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) activeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	m.lastJob = job.Clone()
	m.mu.Unlock()
}
