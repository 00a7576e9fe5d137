package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tunevault/internal/logging"
	"tunevault/internal/queue"
)

// HeartbeatMonitor keeps in-flight jobs alive and fails jobs whose worker died.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// Enabled reports whether stale reclamation runs. A zero timeout or interval
// disables it, since jobs would not heartbeat often enough to stay fresh.
func (h *HeartbeatMonitor) Enabled() bool {
	return h.heartbeatTimeout > 0 && h.heartbeatInterval > 0
}

// ReclaimStaleJobs fails PROCESSING jobs whose heartbeat is older than the timeout.
func (h *HeartbeatMonitor) ReclaimStaleJobs(ctx context.Context) (int64, error) {
	if !h.Enabled() {
		return 0, nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.FailStaleProcessing(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		logging.WarnWithContext(h.logger, "failed stale jobs", "heartbeat_reclaimed",
			logging.Int64("count", reclaimed),
			logging.Duration("heartbeat_timeout", h.heartbeatTimeout),
			logging.String(logging.FieldImpact, "jobs from a dead worker were marked failed; resubmit them to retry"),
		)
	}
	return reclaimed, nil
}

// StartLoop refreshes the heartbeat of jobID until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, jobID int64) {
	if h.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger.With(logging.String("component", "workflow-heartbeat")))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
