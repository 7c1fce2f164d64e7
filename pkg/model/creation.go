package model

import "time"

type CreationStatus string

const (
	CreationCreated  CreationStatus = "created"
	CreationConflict CreationStatus = "conflict"
	CreationFailed   CreationStatus = "failed"
)

// SlotConflict identifies the existing slot that blocked a candidate window.
type SlotConflict struct {
	ExistingSlotID    string `json:"existing_slot_id"`
	ExistingStartTime string `json:"existing_start_time"`
	ExistingEndTime   string `json:"existing_end_time"`
}

// CreationFailure carries the error code and message of an occurrence that
// could not be written. Nothing was stored for it.
type CreationFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreationResult is the outcome for one occurrence of a slot creation request.
type CreationResult struct {
	Date     string           `json:"date"`
	Status   CreationStatus   `json:"status"`
	Slot     *Slot            `json:"slot,omitempty"`
	Conflict *SlotConflict    `json:"conflict,omitempty"`
	Error    *CreationFailure `json:"error,omitempty"`
}

// Reservation is handed to the caller (and on to the payment collaborator)
// after a successful reserve.
type Reservation struct {
	Token      string    `json:"token"`
	SlotID     string    `json:"slot_id"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
