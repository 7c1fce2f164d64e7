package lock

import (
	"context"
	"errors"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/pkg/metrics"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKey(t *testing.T) {
	if got := Key("p1", "2024-06-01"); got != "slot_lock_p1_2024-06-01" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestMemoryLocker_Exclusive(t *testing.T) {
	locker := NewMemoryLocker(2 * time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, Key("p1", "2024-06-01"))
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			maxInside = max(maxInside, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release(ctx)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder at a time, saw %d", maxInside)
	}
}

func TestMemoryLocker_DistinctKeysDoNotBlock(t *testing.T) {
	locker := NewMemoryLocker(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := locker.Acquire(ctx, Key("p1", "2024-06-01"))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer r1(ctx)

	r2, err := locker.Acquire(ctx, Key("p1", "2024-06-02"))
	if err != nil {
		t.Fatalf("expected another day to be free, got %v", err)
	}
	r2(ctx)
}

func TestMemoryLocker_TimesOut(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release(ctx)

	_, err = locker.Acquire(ctx, "k")
	if !errors.Is(err, slotserrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestMemoryLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	first, _ := locker.Acquire(ctx, "k")
	first(ctx)
	second, err := locker.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}

	// A stale release must not free the new holder's lock.
	first(ctx)
	if _, err := locker.Acquire(ctx, "k"); !errors.Is(err, slotserrors.ErrLockTimeout) {
		t.Fatalf("expected lock to still be held, got %v", err)
	}
	second(ctx)
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry(ctx, "k", time.Second, func(context.Context) (bool, error) { return false, nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_PropagatesBackendErrors(t *testing.T) {
	boom := errors.New("boom")
	err := retry(context.Background(), "k", time.Second, func(context.Context) (bool, error) { return false, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestWithMetrics_CountsTimeouts(t *testing.T) {
	m := metrics.NewCollector("locktest")
	locker := WithMetrics(NewMemoryLocker(10*time.Millisecond), BackendMemory, m)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release(ctx)

	if _, err := locker.Acquire(ctx, "k"); !errors.Is(err, slotserrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if got := testutil.ToFloat64(m.LockTimeoutsTotal.WithLabelValues(BackendMemory)); got != 1 {
		t.Errorf("timeouts = %v, expected 1", got)
	}
	if got := testutil.CollectAndCount(m.LockWaitDuration); got != 1 {
		t.Errorf("wait histogram series = %d, expected 1", got)
	}
}
