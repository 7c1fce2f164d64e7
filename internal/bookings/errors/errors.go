package errors

import "errors"

const (
	CodeSlotUnavailable      = "SLOT_UNAVAILABLE"
	CodeReservationNotFound  = "RESERVATION_NOT_FOUND"
	CodeTokenMismatch        = "TOKEN_MISMATCH"
	CodeReservationFinalized = "RESERVATION_FINALIZED"
	CodeIntervalOutOfRange   = "INTERVAL_OUT_OF_RANGE"
)

var (
	// ErrSlotUnavailable means the slot was not available at the instant of
	// the reserve write. Callers should not retry automatically.
	ErrSlotUnavailable = errors.New("slot is not available")

	ErrReservationNotFound = errors.New("reservation not found")

	// ErrTokenMismatch means the token is authentic but does not match the
	// slot's current reservation.
	ErrTokenMismatch = errors.New("reservation token does not match the slot")

	ErrReservationFinalized = errors.New("reservation is already booked")

	ErrIntervalOutOfRange = errors.New("requested interval lies outside the slot")
)
