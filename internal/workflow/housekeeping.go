package workflow

import (
	"context"
	"time"

	"tunevault/internal/logging"
)

const defaultHousekeepingInterval = time.Minute

// runHousekeeping reclaims stale jobs on the heartbeat cadence and prunes
// finished tasks on the cleanup cadence.
func (m *Manager) runHousekeeping(ctx context.Context) {
	defer m.loopWG.Done()

	reclaimEvery := m.heartbeat.heartbeatInterval
	if !m.heartbeat.Enabled() {
		reclaimEvery = 0
	}
	cleanupEvery := time.Duration(m.cfg.Workflow.CleanupInterval) * time.Second
	if cleanupEvery <= 0 {
		cleanupEvery = defaultHousekeepingInterval
	}
	retention := time.Duration(m.cfg.Workflow.TaskRetentionHours) * time.Hour

	m.reclaimStale(ctx)

	var reclaimTick <-chan time.Time
	if reclaimEvery > 0 {
		ticker := time.NewTicker(reclaimEvery)
		defer ticker.Stop()
		reclaimTick = ticker.C
	}
	cleanup := time.NewTicker(cleanupEvery)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reclaimTick:
			m.reclaimStale(ctx)
		case <-cleanup.C:
			m.PruneTasks(retention)
		}
	}
}

func (m *Manager) reclaimStale(ctx context.Context) {
	if _, err := m.heartbeat.ReclaimStaleJobs(ctx); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(m.logger, "reclaim stale jobs failed; stuck jobs may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
}

// PruneTasks drops finished tasks older than retention from the tracker.
func (m *Manager) PruneTasks(retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	removed := m.tracker.CleanupOlderThan(retention)
	if removed > 0 {
		m.logger.Info("pruned finished tasks",
			logging.String(logging.FieldEventType, "tasks_pruned"),
			logging.Int("count", removed),
			logging.Duration("retention", retention),
		)
	}
	return removed
}
