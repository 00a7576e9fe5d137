package filelock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WaitOptions bound WaitForReleaseOrRetry.
type WaitOptions struct {
	MaxWait       time.Duration
	PollInterval  time.Duration
	RetryInterval time.Duration
}

// Outcome is the result of a wait. Exactly one field is set: Path when the
// artifact appeared, Held when the caller now owns the lock and must do the
// work itself.
type Outcome struct {
	Path string
	Held *Held
}

// WaitForReleaseOrRetry polls done until it reports the artifact, and
// re-attempts the lock every RetryInterval so a vanished holder does not
// stall the caller. It returns ErrWaitTimeout once MaxWait elapses.
func WaitForReleaseOrRetry(ctx context.Context, token string, done func() (string, bool), opts WaitOptions) (Outcome, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	deadline := time.Now().Add(opts.MaxWait)
	nextRetry := time.Now().Add(opts.RetryInterval)

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		if path, ok := done(); ok {
			return Outcome{Path: path}, nil
		}
		now := time.Now()
		if !now.Before(nextRetry) {
			held, err := TryAcquire(token)
			switch {
			case err == nil:
				// The holder may have finished between our poll and the lock.
				if path, ok := done(); ok {
					_ = held.Release()
					return Outcome{Path: path}, nil
				}
				return Outcome{Held: held}, nil
			case !errors.Is(err, ErrBusy):
				return Outcome{}, err
			}
			nextRetry = now.Add(opts.RetryInterval)
		}
		if !now.Before(deadline) {
			return Outcome{}, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, token, opts.MaxWait)
		}
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
