package lock

import (
	"context"
	"errors"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/pkg/metrics"
	"time"
)

type instrumentedLocker struct {
	inner   Locker
	backend string
	metrics *metrics.Collector
}

// WithMetrics records how long acquisitions wait and how often they time out.
func WithMetrics(inner Locker, backend string, m *metrics.Collector) Locker {
	if m == nil {
		return inner
	}
	return &instrumentedLocker{inner: inner, backend: backend, metrics: m}
}

func (l *instrumentedLocker) Acquire(ctx context.Context, key string) (Release, error) {
	start := time.Now()
	release, err := l.inner.Acquire(ctx, key)
	l.metrics.LockWaitDuration.WithLabelValues(l.backend).Observe(time.Since(start).Seconds())
	if errors.Is(err, slotserrors.ErrLockTimeout) {
		l.metrics.LockTimeoutsTotal.WithLabelValues(l.backend).Inc()
	}
	return release, err
}
