// Package sweeper runs the reservation timeout sweep on a fixed interval.
package sweeper

import (
	"context"
	"slotkeeper/internal/bookings/service"
	"slotkeeper/pkg/logger"
	"time"
)

// Sweeper is satisfied by the booking coordinator.
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
}

type Runner struct {
	sweeper  Sweeper
	interval time.Duration
	log      *logger.Logger
	tick     func(d time.Duration) (<-chan time.Time, func())
}

func NewRunner(sweeper Sweeper, interval time.Duration, log *logger.Logger) *Runner {
	return &Runner{
		sweeper:  sweeper,
		interval: interval,
		log:      log,
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("Reservation sweeper started", "interval", r.interval)
	defer r.log.Info("Reservation sweeper stopped")

	r.runOnce(ctx)

	ticks, stop := r.tick(r.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	result, err := r.sweeper.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Error("Reservation sweep failed", "error", err)
		return
	}
	if result.Released > 0 || result.Failed > 0 {
		r.log.Info("Reservation sweep finished",
			"scanned", result.Scanned,
			"released", result.Released,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
}
