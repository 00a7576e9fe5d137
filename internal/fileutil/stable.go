package fileutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrNotStable is returned when a file keeps changing until the deadline.
var ErrNotStable = errors.New("file did not stabilize")

// StableOptions bound a stabilization wait.
type StableOptions struct {
	MaxWait  time.Duration
	Interval time.Duration
	// Checks is the number of consecutive identical non-zero size samples required.
	Checks int
}

// WaitUntilStable polls the size of path until it is non-zero and unchanged
// for opts.Checks consecutive samples. A missing file counts as a changing
// sample, since writers may create it late.
func WaitUntilStable(ctx context.Context, path string, opts StableOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	if opts.Checks <= 0 {
		opts.Checks = 1
	}
	deadline := time.Now().Add(opts.MaxWait)

	var (
		lastSize int64 = -1
		streak   int
	)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		size := int64(-1)
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		if size > 0 && size == lastSize {
			streak++
		} else {
			streak = 0
		}
		lastSize = size
		if streak >= opts.Checks {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrNotStable, path, opts.MaxWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
