package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tunevault/internal/config"
	"tunevault/internal/logging"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	locker ClaimLocker
	logger *slog.Logger
}

// Option customizes Store construction.
type Option func(*Store)

// WithClaimLocker overrides the outer lock used by ClaimNext and Enqueue.
func WithClaimLocker(locker ClaimLocker) Option {
	return func(s *Store) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithLogger sets the logger for problems that do not fail the caller.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logging.NewComponentLogger(logger, "queue")
		}
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the queue database. The claim lock backend is
// chosen from cfg.Queue unless overridden with WithClaimLocker.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store := &Store{path: cfg.DatabasePath(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	if store.locker == nil {
		locker, err := NewClaimLocker(cfg)
		if err != nil {
			return nil, err
		}
		store.locker = locker
	}

	db, err := sql.Open("sqlite", sqliteDSN(store.path))
	if err != nil {
		_ = store.locker.Close()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// journal_mode is persistent in the file; the DSN pragmas apply per connection.
	if _, execErr := db.Exec("PRAGMA journal_mode=WAL"); execErr != nil {
		_ = db.Close()
		_ = store.locker.Close()
		return nil, fmt.Errorf("apply pragma journal_mode: %w", execErr)
	}
	store.db = db

	if err := store.initSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// sqliteDSN applies busy_timeout and foreign_keys to every pooled connection
// and makes BeginTx take the write lock up front.
func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
}

// DB exposes the shared connection pool so sibling stores (the library
// catalog) can live in the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database and releases the claim lock backend.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.locker != nil {
		errs = append(errs, s.locker.Close())
	}
	return errors.Join(errs...)
}

// withImmediateTx runs fn inside BEGIN IMMEDIATE on a dedicated connection,
// holding the outer claim lock for the duration. SQLite takes the reserved
// write lock at BEGIN, so no other writer can interleave between fn's reads
// and writes.
func (s *Store) withImmediateTx(ctx context.Context, fn func(conn *sql.Conn) error) (err error) {
	ctx = ensureContext(ctx)

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("acquire claim lock: %w", err)
	}
	committed := false
	defer func() {
		unlockErr := unlock()
		switch {
		case unlockErr == nil:
		case committed:
			// The transaction is durable; failing here would orphan a claimed row.
			logging.WarnWithContext(s.logger, "failed to release claim lock", "claim_lock_release_failed",
				logging.Error(unlockErr),
				logging.String(logging.FieldErrorHint, "check the claim lock file or Redis connectivity"),
				logging.String(logging.FieldImpact, "other workers wait until the lock expires"),
			)
		case err == nil:
			err = fmt.Errorf("release claim lock: %w", unlockErr)
		}
	}()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := retryOnBusy(ctx, func() error {
		_, beginErr := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		return beginErr
	}); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	if err := fn(conn); err != nil {
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
