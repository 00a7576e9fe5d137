package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

var (
	// ErrBusy reports that another worker holds the token.
	ErrBusy = errors.New("resource lock held by another worker")
	// ErrWaitTimeout reports that neither the artifact nor the lock became
	// available within the wait budget.
	ErrWaitTimeout = errors.New("timed out waiting for resource lock holder")
)

// acquireAttempts bounds retries when the lock file is swapped underneath us.
const acquireAttempts = 3

// TokenFor returns the lock file path that guards work on path.
func TokenFor(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".lock"
}

// Held is an acquired lock. Release it exactly once; extra calls are no-ops.
type Held struct {
	token string
	lock  *flock.Flock
	once  sync.Once
	err   error
}

// Token returns the lock file path.
func (h *Held) Token() string {
	return h.token
}

// TryAcquire takes the lock without blocking. It returns ErrBusy when another
// holder exists.
func TryAcquire(token string) (*Held, error) {
	if err := os.MkdirAll(filepath.Dir(token), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		lock := flock.New(token)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", token, err)
		}
		if !locked {
			return nil, ErrBusy
		}
		// A previous holder unlinks the file on release. If we locked the
		// unlinked inode, the path is no longer guarded by our lock.
		if sameInode(lock, token) {
			return &Held{token: token, lock: lock}, nil
		}
		_ = lock.Unlock()
	}
	return nil, ErrBusy
}

func sameInode(lock *flock.Flock, token string) bool {
	held, err := lock.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(token)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

// Release removes the lock file and unlocks it. The file is removed first so
// no new waiter can lock a path that is about to disappear.
func (h *Held) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		var errs []error
		if err := os.Remove(h.token); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove lock file: %w", err))
		}
		if err := h.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock %s: %w", h.token, err))
		}
		h.err = errors.Join(errs...)
	})
	return h.err
}
