package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ClaimNext atomically moves the oldest PENDING job to PROCESSING and returns a
// detached snapshot of it. It returns (nil, nil) when nothing is pending. An
// error means the store could not be reached and the caller should try again
// later; it never means a job went missing.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	var claimed *Job
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			StatusPending,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select pending job: %w", err)
		}

		timestamp := now()
		res, err := conn.ExecContext(ctx,
			`UPDATE jobs SET status = ?, updated_at = ?, last_heartbeat = ? WHERE id = ? AND status = ?`,
			StatusProcessing, timestamp, timestamp, job.ID, StatusPending,
		)
		if err != nil {
			return fmt.Errorf("mark job %d processing: %w", job.ID, err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		} else if affected != 1 {
			return fmt.Errorf("claim job %d: expected 1 row updated, got %d", job.ID, affected)
		}

		job.Status = StatusProcessing
		if parsed, err := parseTimeString(timestamp); err == nil {
			job.UpdatedAt = parsed
			job.LastHeartbeat = &parsed
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed.Clone(), nil
}
