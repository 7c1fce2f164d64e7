// Package pruner hides slots whose window has already ended. It is a read-time
// filter: nothing is written back to the store.
package pruner

import (
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/model"
	"time"
)

type Pruner struct {
	clock clock.Clock
	loc   *time.Location
}

func New(c clock.Clock, loc *time.Location) *Pruner {
	if loc == nil {
		loc = time.UTC
	}
	return &Pruner{clock: c, loc: loc}
}

// Expired reports whether the slot's end instant is strictly before now.
// Slots with an unreadable window are treated as expired.
func (p *Pruner) Expired(slot *model.Slot) bool {
	iv, err := slot.Interval()
	if err != nil {
		return true
	}
	return iv.EndsAt(p.loc).Before(p.clock.Now())
}

// Filter returns the slots that have not ended yet, keeping their order.
func (p *Pruner) Filter(slots []*model.Slot) []*model.Slot {
	kept := make([]*model.Slot, 0, len(slots))
	for _, s := range slots {
		if !p.Expired(s) {
			kept = append(kept, s)
		}
	}
	return kept
}

func (p *Pruner) Location() *time.Location {
	return p.loc
}
