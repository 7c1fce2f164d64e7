// Package conflict decides whether a candidate window may be admitted next to
// a provider's existing slots.
package conflict

import (
	"errors"
	"fmt"
	"slotkeeper/pkg/interval"
	"slotkeeper/pkg/model"
)

var ErrSlotConflict = errors.New("slot overlaps an existing slot")

// ConflictError names the existing slot that blocked the candidate.
type ConflictError struct {
	Candidate interval.Interval
	Existing  *model.Slot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: candidate %s overlaps slot %s (%s %s-%s)",
		ErrSlotConflict, e.Candidate, e.Existing.ID, e.Existing.Date, e.Existing.StartTime, e.Existing.EndTime)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

// Details is the user-facing description of the conflict.
func (e *ConflictError) Details() *model.SlotConflict {
	return &model.SlotConflict{
		ExistingSlotID:    e.Existing.ID,
		ExistingStartTime: e.Existing.StartTime,
		ExistingEndTime:   e.Existing.EndTime,
	}
}

// Detect admits candidate iff no available or reserved slot on the same date
// overlaps it. Booked slots are history and never block. When several slots
// overlap, the earliest one is reported.
func Detect(candidate interval.Interval, existing []*model.Slot) error {
	day := candidate.Date.String()

	var blocking *model.Slot
	var blockingInterval interval.Interval
	for _, slot := range existing {
		if slot.Date != day || !slot.IsActive() {
			continue
		}
		iv, err := slot.Interval()
		if err != nil {
			return fmt.Errorf("stored slot %s has an unreadable window: %w", slot.ID, err)
		}
		if !interval.Overlaps(candidate, iv) {
			continue
		}
		if blocking == nil || iv.Before(blockingInterval) {
			blocking, blockingInterval = slot, iv
		}
	}

	if blocking != nil {
		return &ConflictError{Candidate: candidate, Existing: blocking}
	}
	return nil
}
