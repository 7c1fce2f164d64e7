package conflict

import (
	"errors"
	"slotkeeper/pkg/interval"
	"slotkeeper/pkg/model"
	"testing"
)

func slot(id, date, start, end string, status model.SlotStatus) *model.Slot {
	return &model.Slot{ID: id, ProviderID: "p1", Date: date, StartTime: start, EndTime: end, Status: status}
}

func candidate(t *testing.T, date, start, end string) interval.Interval {
	t.Helper()
	iv, err := interval.Parse(date, start, end)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return iv
}

func TestDetect_OverlapIsRejected(t *testing.T) {
	existing := []*model.Slot{slot("s1", "2024-06-01", "09:00", "10:00", model.SlotAvailable)}

	err := Detect(candidate(t, "2024-06-01", "09:30", "10:30"), existing)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
	if conflictErr.Existing.ID != "s1" {
		t.Errorf("expected conflicting slot s1, got %s", conflictErr.Existing.ID)
	}
	if d := conflictErr.Details(); d.ExistingSlotID != "s1" || d.ExistingStartTime != "09:00" {
		t.Errorf("unexpected details %+v", d)
	}
}

func TestDetect_BackToBackIsAdmitted(t *testing.T) {
	existing := []*model.Slot{slot("s1", "2024-06-01", "09:00", "10:00", model.SlotAvailable)}

	if err := Detect(candidate(t, "2024-06-01", "10:00", "11:00"), existing); err != nil {
		t.Errorf("expected back-to-back slot to be admitted, got %v", err)
	}
	if err := Detect(candidate(t, "2024-06-01", "08:00", "09:00"), existing); err != nil {
		t.Errorf("expected slot ending at existing start to be admitted, got %v", err)
	}
}

func TestDetect_IgnoresOtherDatesAndBookedSlots(t *testing.T) {
	existing := []*model.Slot{
		slot("other-day", "2024-06-02", "09:00", "10:00", model.SlotAvailable),
		slot("booked", "2024-06-01", "09:00", "10:00", model.SlotBooked),
	}

	if err := Detect(candidate(t, "2024-06-01", "09:00", "10:00"), existing); err != nil {
		t.Errorf("expected candidate to be admitted, got %v", err)
	}
}

func TestDetect_ReservedSlotsBlock(t *testing.T) {
	existing := []*model.Slot{slot("held", "2024-06-01", "09:00", "10:00", model.SlotReserved)}

	if err := Detect(candidate(t, "2024-06-01", "09:15", "09:45"), existing); !errors.Is(err, ErrSlotConflict) {
		t.Errorf("expected reserved slot to block, got %v", err)
	}
}

func TestDetect_ReportsEarliestConflict(t *testing.T) {
	existing := []*model.Slot{
		slot("late", "2024-06-01", "11:00", "12:00", model.SlotAvailable),
		slot("early", "2024-06-01", "09:00", "10:00", model.SlotAvailable),
	}

	err := Detect(candidate(t, "2024-06-01", "08:00", "13:00"), existing)
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if conflictErr.Existing.ID != "early" {
		t.Errorf("expected earliest conflict to be reported, got %s", conflictErr.Existing.ID)
	}
}
