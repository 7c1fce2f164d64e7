package lock

import (
	"context"
	"fmt"
	slotserrors "slotkeeper/internal/slots/errors"
	"sync"
	"time"
)

// MemoryLocker is a keyed mutex for single-process deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]chan struct{}),
		wait: wait,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Release, error) {
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		released, busy := l.held[key]
		if !busy {
			mine := make(chan struct{})
			l.held[key] = mine
			l.mu.Unlock()
			return l.releaser(key, mine), nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrLockTimeout, key)
		}
	}
}

func (l *MemoryLocker) releaser(key string, mine chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == mine {
				delete(l.held, key)
			}
			close(mine)
		})
		return nil
	}
}
