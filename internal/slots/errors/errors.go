package errors

import "errors"

const (
	CodeInvalidInterval   = "INVALID_INTERVAL"
	CodeInvalidRecurrence = "INVALID_RECURRENCE"
	CodeSlotConflict      = "SLOT_CONFLICT"
	CodeSlotNotRemovable  = "SLOT_NOT_REMOVABLE"
	CodeInvalidQueryRange = "INVALID_QUERY_RANGE"
)

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrStateChanged is returned by conditional writes whose precondition no
	// longer holds.
	ErrStateChanged = errors.New("slot state changed")

	ErrNotRemovable = errors.New("only available slots can be removed")

	ErrLockTimeout = errors.New("timed out waiting for slot day lock")
)
