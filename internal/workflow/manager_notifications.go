package workflow

import (
	"context"
	"errors"
	"time"

	"tunevault/internal/logging"
	"tunevault/internal/queue"
)

func (m *Manager) onJobStarted(job *queue.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
	m.lastJob = job.Clone()
	if !m.queueActive {
		m.queueActive = true
		m.queueStart = time.Now()
		m.processed = 0
		m.failed = 0
	}
}

// onJobFinished tallies the outcome and sends the drained notification once
// this process has no work left and no job is pending or processing anywhere.
func (m *Manager) onJobFinished(ctx context.Context, job *queue.Job, succeeded bool) {
	m.mu.Lock()
	m.active--
	if succeeded {
		m.processed++
	} else {
		m.failed++
	}
	remaining := m.active
	m.mu.Unlock()

	if latest, err := m.store.GetByID(context.WithoutCancel(ctx), job.ID); err == nil && latest != nil {
		m.setLastJob(latest)
	}
	if remaining > 0 {
		return
	}
	m.checkQueueDrained(context.WithoutCancel(ctx))
}

func (m *Manager) checkQueueDrained(ctx context.Context) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.WarnWithContext(m.logger, "queue stats unavailable for drained notification; notification skipped", "queue_stats_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "queue drained notification will not be sent"),
			)
		}
		return
	}
	if stats[queue.StatusPending]+stats[queue.StatusProcessing] > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive || m.active > 0 {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	processed, failed := m.processed, m.failed
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	m.logger.Info("queue drained",
		logging.String(logging.FieldEventType, "queue_drained"),
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Duration("duration", duration),
	)
	if err := m.notifier.NotifyQueueDrained(ctx, processed, failed, duration); err != nil {
		m.logger.Debug("queue drained notification failed", logging.Error(err))
	}
}
