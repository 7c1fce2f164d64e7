package model

import (
	"errors"
	"fmt"
	"slices"
	"slotkeeper/pkg/interval"
	"time"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotReserved  SlotStatus = "reserved"
	SlotBooked    SlotStatus = "booked"
)

// MaxReleasedTokens bounds the per-slot history of released reservation tokens.
// A replayed release or confirm is only recognised while its token is among
// the last MaxReleasedTokens released on that slot.
const MaxReleasedTokens = 50

var ErrInvalidSlotState = errors.New("invalid slot state")

// Hold is the pending reservation of a slot. Present iff the slot is reserved.
type Hold struct {
	Token      string    `json:"-" bson:"token"`
	CustomerID string    `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	StartTime  string    `json:"start_time" bson:"start_time"`
	EndTime    string    `json:"end_time" bson:"end_time"`
	ReservedAt time.Time `json:"reserved_at" bson:"reserved_at"`
}

// Booking is the finalized reservation of a slot. Present iff the slot is booked.
// Token keeps the confirming token so duplicate confirmations can be recognised.
type Booking struct {
	Token       string    `json:"-" bson:"token"`
	CustomerID  string    `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	StartTime   string    `json:"start_time" bson:"start_time"`
	EndTime     string    `json:"end_time" bson:"end_time"`
	ConfirmedAt time.Time `json:"confirmed_at" bson:"confirmed_at"`
}

type Slot struct {
	ID             string     `json:"id,omitempty" bson:"_id,omitempty"`
	ProviderID     string     `json:"provider_id" bson:"provider_id"`
	Date           string     `json:"date" bson:"date"`
	StartTime      string     `json:"start_time" bson:"start_time"`
	EndTime        string     `json:"end_time" bson:"end_time"`
	Status         SlotStatus `json:"status" bson:"status"`
	Hold           *Hold      `json:"hold,omitempty" bson:"hold,omitempty"`
	Booking        *Booking   `json:"booking,omitempty" bson:"booking,omitempty"`
	ReleasedTokens []string   `json:"-" bson:"released_tokens,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

// Interval parses the slot's published window.
func (s *Slot) Interval() (interval.Interval, error) {
	return interval.Parse(s.Date, s.StartTime, s.EndTime)
}

// IsActive reports whether the slot still blocks overlapping windows.
func (s *Slot) IsActive() bool {
	return s.Status == SlotAvailable || s.Status == SlotReserved
}

// HeldBy reports whether the slot is reserved under token.
func (s *Slot) HeldBy(token string) bool {
	return s.Status == SlotReserved && s.Hold != nil && s.Hold.Token == token
}

// BookedWith reports whether token is the one that booked the slot.
func (s *Slot) BookedWith(token string) bool {
	return s.Status == SlotBooked && s.Booking != nil && s.Booking.Token == token
}

func (s *Slot) HasReleased(token string) bool {
	return token != "" && slices.Contains(s.ReleasedTokens, token)
}

// Validate checks that the status tag agrees with the hold and booking payloads.
func (s *Slot) Validate() error {
	switch s.Status {
	case SlotAvailable:
		if s.Hold != nil || s.Booking != nil {
			return fmt.Errorf("%w: available slot %s carries a reservation", ErrInvalidSlotState, s.ID)
		}
	case SlotReserved:
		if s.Hold == nil || s.Hold.Token == "" || s.Hold.ReservedAt.IsZero() {
			return fmt.Errorf("%w: reserved slot %s has no hold", ErrInvalidSlotState, s.ID)
		}
		if s.Booking != nil {
			return fmt.Errorf("%w: reserved slot %s carries a booking", ErrInvalidSlotState, s.ID)
		}
	case SlotBooked:
		if s.Booking == nil || s.Booking.Token == "" {
			return fmt.Errorf("%w: booked slot %s has no booking", ErrInvalidSlotState, s.ID)
		}
		if s.Hold != nil {
			return fmt.Errorf("%w: booked slot %s still carries a hold", ErrInvalidSlotState, s.ID)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidSlotState, s.Status)
	}
	return nil
}

// Clone returns a deep copy.
func (s *Slot) Clone() *Slot {
	c := *s
	if s.Hold != nil {
		h := *s.Hold
		c.Hold = &h
	}
	if s.Booking != nil {
		b := *s.Booking
		c.Booking = &b
	}
	c.ReleasedTokens = slices.Clone(s.ReleasedTokens)
	return &c
}

// SortSlots orders slots by (date, start_time, end_time). The wire formats
// are fixed width, so lexical order is chronological.
func SortSlots(slots []*Slot) {
	slices.SortStableFunc(slots, func(a, b *Slot) int {
		if a.Date != b.Date {
			return compareStrings(a.Date, b.Date)
		}
		if a.StartTime != b.StartTime {
			return compareStrings(a.StartTime, b.StartTime)
		}
		return compareStrings(a.EndTime, b.EndTime)
	})
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
