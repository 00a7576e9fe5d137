package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"tunevault/internal/config"
)

// ClaimLocker is the outer, process-external mutex that serializes claims and
// enqueue dedup checks across every process sharing one database.
type ClaimLocker interface {
	// Lock blocks until the lock is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context) (func() error, error)
	Close() error
}

const claimLockPollInterval = 10 * time.Millisecond

// NewClaimLocker builds the backend selected by queue.claim_lock_backend.
func NewClaimLocker(cfg *config.Config) (ClaimLocker, error) {
	switch cfg.Queue.ClaimLockBackend {
	case "", "file":
		return NewFileClaimLocker(cfg.ClaimLockPath()), nil
	case "redis":
		return NewRedisClaimLocker(cfg.Queue.RedisURL, "tunevault:queue:claim", time.Duration(cfg.Queue.ClaimLockTTL)*time.Second)
	default:
		return nil, fmt.Errorf("unsupported claim lock backend %q", cfg.Queue.ClaimLockBackend)
	}
}

// FileClaimLocker holds an advisory flock on a well-known path. The OS drops
// the lock if the holding process dies.
type FileClaimLocker struct {
	lock *flock.Flock
	// sem serializes goroutines of one process; flock itself is per file handle.
	sem chan struct{}
}

// NewFileClaimLocker returns a locker on path. The file is created on first use.
func NewFileClaimLocker(path string) *FileClaimLocker {
	return &FileClaimLocker{lock: flock.New(path), sem: make(chan struct{}, 1)}
}

func (l *FileClaimLocker) Lock(ctx context.Context) (func() error, error) {
	ctx = ensureContext(ctx)
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	locked, err := l.lock.TryLockContext(ctx, claimLockPollInterval)
	if err != nil {
		<-l.sem
		return nil, fmt.Errorf("flock %s: %w", l.lock.Path(), err)
	}
	if !locked {
		<-l.sem
		return nil, ctx.Err()
	}
	return func() error {
		defer func() { <-l.sem }()
		return l.lock.Unlock()
	}, nil
}

func (l *FileClaimLocker) Close() error {
	return l.lock.Close()
}
