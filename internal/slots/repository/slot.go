package repository

import (
	"context"
	mongotx "slotkeeper/pkg/db/mongo"
	"slotkeeper/pkg/model"
	"time"
)

const (
	CollectionName = "Slots"
)

// SlotRepository persists slots. Every state transition is a single
// conditional write: when the precondition no longer holds the call returns
// ErrStateChanged and leaves the slot untouched.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindActiveByProviderAndDate(ctx context.Context, providerID, date string) ([]*model.Slot, error)
	// FindByProviderAndRange returns slots with from <= date <= to ordered by
	// (date, start_time). An empty status matches every status.
	FindByProviderAndRange(ctx context.Context, providerID, from, to string, status model.SlotStatus) ([]*model.Slot, error)
	DeleteAvailable(ctx context.Context, id, providerID string) error

	Reserve(ctx context.Context, id string, hold *model.Hold) (*model.Slot, error)
	Confirm(ctx context.Context, id, token string, booking *model.Booking) (*model.Slot, error)
	// Release returns a reserved slot to available and records the token in its
	// released history. A non-nil reservedBefore restricts the release to holds
	// taken strictly before that instant.
	Release(ctx context.Context, id, token string, reservedBefore *time.Time) (*model.Slot, error)
	FindStaleReservations(ctx context.Context, cutoff time.Time, limit int) ([]*model.Slot, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}
