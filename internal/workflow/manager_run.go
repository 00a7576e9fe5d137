package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"tunevault/internal/logging"
	"tunevault/internal/queue"
	"tunevault/internal/services"
	"tunevault/internal/tasks"
)

// Start launches the claim loop and housekeeping in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.executor == nil {
		return errors.New("workflow executor not configured")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	// Executions outlive the claim loop so Stop can drain them.
	execCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.abort = abort
	m.running = true

	m.loopWG.Add(2)
	go m.runLoop(loopCtx, execCtx)
	go m.runHousekeeping(loopCtx)

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("slots", cap(m.slots)),
		logging.Bool("release_slot_when_idle", m.releaseWhenIdle),
	)
	return nil
}

// Stop halts new claims and waits for in-flight executions to finish.
func (m *Manager) Stop() {
	_ = m.Shutdown(context.Background())
}

// Shutdown halts new claims and waits for in-flight executions until ctx
// ends, after which remaining executions are cancelled and awaited.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel, abort := m.cancel, m.abort
	m.running = false
	m.cancel, m.abort = nil, nil
	m.mu.Unlock()

	cancel()
	m.loopWG.Wait()

	drained := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		m.logger.Warn("shutdown deadline reached, cancelling in-flight jobs",
			logging.String(logging.FieldEventType, "workflow_abort_inflight"),
			logging.Int("in_flight", m.activeCount()),
		)
		abort()
		<-drained
	}
	abort()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
	return err
}

// Running reports whether the claim loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Manager) runLoop(ctx, execCtx context.Context) {
	defer m.loopWG.Done()
	for {
		if !m.acquireSlot(ctx) {
			return
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			m.releaseSlot()
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, err)
			continue
		}
		if job == nil {
			m.idle(ctx)
			continue
		}

		m.dispatch(ctx, execCtx, job)
		if !sleepCtx(ctx, m.dispatchDelay) {
			return
		}
	}
}

func (m *Manager) acquireSlot(ctx context.Context) bool {
	select {
	case m.slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) releaseSlot() {
	<-m.slots
}

// idle sleeps after an empty claim. The slot is held across the sleep unless
// queue.release_slot_when_idle is set.
func (m *Manager) idle(ctx context.Context) {
	if m.releaseWhenIdle {
		m.releaseSlot()
		sleepCtx(ctx, m.idlePoll)
		return
	}
	sleepCtx(ctx, m.idlePoll)
	m.releaseSlot()
}

func (m *Manager) handleClaimError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "failed to claim next job", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access and the claim lock backend"),
		logging.Duration("retry_in", m.errorRetry),
	)
	sleepCtx(ctx, m.errorRetry)
}

// dispatch registers the task, attaches it to the job row and starts the
// execution. The slot taken by the loop is owned by the execution from here.
func (m *Manager) dispatch(ctx, execCtx context.Context, job *queue.Job) {
	runID := m.tracker.Create(job.URL)
	if err := m.store.AttachRun(ctx, job.ID, runID, "waiting"); err != nil {
		logging.WarnWithContext(m.logger, "failed to attach run to job", "job_attach_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "queue listing cannot link this job to its task"),
		)
	}
	job.RunID = runID
	job.Progress = 0
	job.Message = "waiting"

	m.onJobStarted(job)
	m.inflight.Add(1)
	go m.execute(execCtx, job, runID)
}

func (m *Manager) execute(ctx context.Context, job *queue.Job, runID string) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)
	succeeded := false
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("job execution panicked: %v", recovered)
			logging.ErrorWithContext(logger, "job execution panicked", "job_panic",
				logging.String("panic", fmt.Sprint(recovered)),
				logging.String("stack", string(debug.Stack())),
			)
			m.recordFailure(context.WithoutCancel(ctx), job, runID, panicErr)
		}
		m.onJobFinished(ctx, job, succeeded)
		m.releaseSlot()
		m.inflight.Done()
	}()

	logger.Info("job dispatched",
		logging.String(logging.FieldEventType, "job_dispatched"),
		logging.String("url", job.URL),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		m.heartbeat.StartLoop(hbCtx, job.ID)
	}()
	err := m.executor.Execute(ctx, job, runID)
	hbCancel()
	<-hbDone

	if err != nil {
		m.setLastError(err)
		m.settleFailure(context.WithoutCancel(ctx), job, runID, err)
		return
	}
	succeeded = true
}

// settleFailure fails a job whose executor returned an error without
// recording an outcome. A row or task the executor already settled is left alone.
func (m *Manager) settleFailure(ctx context.Context, job *queue.Job, runID string, cause error) {
	message := cause.Error()
	if task, ok := m.tracker.Get(runID); ok && task.Error == "" {
		m.tracker.Update(runID, tasks.Failed(message))
	}
	changed, err := m.store.FailIfProcessing(ctx, job.ID, message)
	if err != nil {
		logging.ErrorWithContext(m.logger, "failed to persist job failure", "job_failure_persist_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
		return
	}
	if changed {
		logging.WarnWithContext(m.logger, "executor returned without settling job", "job_unsettled_failure",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(cause),
			logging.String(logging.FieldImpact, "job marked failed by the scheduler"),
		)
	}
}

// recordFailure marks both the task and the job FAILED after a panic.
func (m *Manager) recordFailure(ctx context.Context, job *queue.Job, runID string, cause error) {
	m.setLastError(cause)
	message := cause.Error()
	m.tracker.Update(runID, tasks.Failed(message))
	if err := m.store.MarkFailed(ctx, job.ID, message); err != nil {
		logging.ErrorWithContext(m.logger, "failed to persist job failure", "job_failure_persist_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
