// Package lock serializes slot creation per (provider, date). Creation is a
// check-then-insert, so two requests for the same provider and day must not
// interleave between the conflict check and the write.
package lock

import (
	"context"
	"fmt"
	slotserrors "slotkeeper/internal/slots/errors"
	"time"
)

const (
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	initialBackoff = 10 * time.Millisecond
	maxBackoff     = 200 * time.Millisecond
)

// Release gives a held lock back. Calling it more than once is harmless.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until key is held, ctx ends, or the configured wait
	// elapses, in which case the error wraps ErrLockTimeout.
	Acquire(ctx context.Context, key string) (Release, error)
}

// Key names the lock guarding one provider's day.
func Key(providerID, date string) string {
	return fmt.Sprintf("slot_lock_%s_%s", providerID, date)
}

// tryFunc makes one acquisition attempt and reports whether it got the lock.
type tryFunc func(ctx context.Context) (bool, error)

// retry calls try with exponential backoff until it succeeds or wait elapses.
func retry(ctx context.Context, key string, wait time.Duration, try tryFunc) error {
	deadline := time.Now().Add(wait)
	backoff := initialBackoff

	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: %s", slotserrors.ErrLockTimeout, key)
		}

		timer := time.NewTimer(min(backoff, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
