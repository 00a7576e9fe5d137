package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyURL is returned when a job is enqueued without a URL.
var ErrEmptyURL = errors.New("url must not be empty")

// Enqueue inserts a PENDING job unless a PENDING or PROCESSING job already
// exists for the same URL, in which case that job is returned and created is
// false. The check and the insert run in one immediate transaction under the
// claim lock so concurrent enqueues of one URL collapse to a single row.
func (s *Store) Enqueue(ctx context.Context, url, sourceTag, title string) (job *Job, created bool, err error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false, ErrEmptyURL
	}

	var id int64
	err = s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		existing, findErr := findActiveByURL(ctx, conn, url)
		if findErr != nil {
			return findErr
		}
		if existing != nil {
			job = existing
			return nil
		}
		timestamp := now()
		res, execErr := conn.ExecContext(ctx,
			`INSERT INTO jobs (url, source_tag, title, status, progress, created_at, updated_at)
             VALUES (?, ?, ?, ?, 0, ?, ?)`,
			url,
			nullableString(strings.TrimSpace(sourceTag)),
			nullableString(strings.TrimSpace(title)),
			StatusPending,
			timestamp,
			timestamp,
		)
		if execErr != nil {
			return fmt.Errorf("insert job: %w", execErr)
		}
		id, execErr = res.LastInsertId()
		if execErr != nil {
			return fmt.Errorf("last insert id: %w", execErr)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if job != nil {
		return job, false, nil
	}
	job, err = s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findActiveByURL(ctx context.Context, q queryer, url string) (*Job, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE url = ? AND status IN (?, ?)
         ORDER BY created_at, id LIMIT 1`,
		url, StatusPending, StatusProcessing,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return job, nil
}

// FindActiveByURL returns the oldest PENDING or PROCESSING job for url, or nil.
func (s *Store) FindActiveByURL(ctx context.Context, url string) (*Job, error) {
	return findActiveByURL(ensureContext(ctx), s.db, strings.TrimSpace(url))
}

// GetByID fetches a job by ID. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs oldest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Update persists every mutable field of job and stamps updated_at.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("update job: nil job")
	}
	job.Progress = ClampProgress(job.Progress)
	if job.Error != "" {
		job.Status = StatusFailed
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET source_tag = ?, run_id = ?, status = ?, progress = ?, message = ?,
            error = ?, title = ?, track_id = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.SourceTag),
		nullableString(job.RunID),
		job.Status,
		job.Progress,
		nullableString(job.Message),
		nullableString(job.Error),
		nullableString(job.Title),
		nullableInt64(job.TrackID),
		nullableTime(job.LastHeartbeat),
		now(),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	return nil
}

// AttachRun links a claimed job to its in-memory task and resets its progress.
func (s *Store) AttachRun(ctx context.Context, id int64, runID, message string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET run_id = ?, progress = 0, message = ?, updated_at = ? WHERE id = ?`,
		nullableString(runID), nullableString(message), now(), id,
	)
	if err != nil {
		return fmt.Errorf("attach run to job %d: %w", id, err)
	}
	return nil
}

// UpdateProgress records a milestone for an in-flight job.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent int, message string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET progress = ?, message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		ClampProgress(percent), nullableString(message), now(), id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress for job %d: %w", id, err)
	}
	return nil
}

// SetTitle fills in the display title of a job.
func (s *Store) SetTitle(ctx context.Context, id int64, title string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET title = ?, updated_at = ? WHERE id = ?`,
		nullableString(strings.TrimSpace(title)), now(), id,
	)
	if err != nil {
		return fmt.Errorf("set title for job %d: %w", id, err)
	}
	return nil
}

// MarkCompleted sets a job COMPLETED at 100% with the produced track reference.
func (s *Store) MarkCompleted(ctx context.Context, id int64, message, title string, trackID int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, progress = 100, message = ?, error = NULL,
            title = COALESCE(?, title), track_id = ?, updated_at = ?
         WHERE id = ?`,
		StatusCompleted, nullableString(message), nullableString(title), nullableInt64(trackID), now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark job %d completed: %w", id, err)
	}
	return nil
}

// MarkFailed sets a job FAILED with errMsg, leaving progress at its last milestone.
func (s *Store) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	errMsg = strings.TrimSpace(errMsg)
	if errMsg == "" {
		errMsg = "failed without error detail"
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, errMsg, now(), id,
	)
	if err != nil {
		return fmt.Errorf("mark job %d failed: %w", id, err)
	}
	return nil
}

// FailIfProcessing marks id FAILED only while it is still PROCESSING and
// reports whether the row changed. Rows already settled keep their outcome.
func (s *Store) FailIfProcessing(ctx context.Context, id int64, errMsg string) (bool, error) {
	errMsg = strings.TrimSpace(errMsg)
	if errMsg == "" {
		errMsg = "failed without error detail"
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusFailed, errMsg, now(), id, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("fail job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail job %d rows affected: %w", id, err)
	}
	return affected > 0, nil
}

// RemovePendingByURL deletes PENDING jobs for url. Jobs in any other status are kept.
func (s *Store) RemovePendingByURL(ctx context.Context, url string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE url = ? AND status = ?`,
		strings.TrimSpace(url), StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove job rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearAll deletes every job regardless of status. It returns the run IDs that
// were attached to the deleted rows so callers can drop the matching tasks.
func (s *Store) ClearAll(ctx context.Context) ([]string, int64, error) {
	var (
		runIDs  []string
		removed int64
	)
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT run_id FROM jobs WHERE run_id IS NOT NULL`)
		if err != nil {
			return fmt.Errorf("collect run ids: %w", err)
		}
		for rows.Next() {
			var runID string
			if err := rows.Scan(&runID); err != nil {
				rows.Close()
				return fmt.Errorf("scan run id: %w", err)
			}
			runIDs = append(runIDs, runID)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate run ids: %w", err)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, `DELETE FROM jobs`)
		if err != nil {
			return fmt.Errorf("clear jobs: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return runIDs, removed, nil
}

// CountByStatus returns the number of jobs in status.
func (s *Store) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM jobs WHERE status = ?`, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s jobs: %w", status, err)
	}
	return count, nil
}
