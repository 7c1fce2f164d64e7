package repository

import (
	"context"
	slotserrors "slotkeeper/internal/slots/errors"
	mongotx "slotkeeper/pkg/db/mongo"
	"slotkeeper/pkg/model"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySlotRepository keeps slots in process. Conditional writes are applied
// under a single mutex, so each transition is atomic with respect to others.
type MemorySlotRepository struct {
	mu    sync.RWMutex
	slots map[string]*model.Slot
	now   func() time.Time
}

func NewMemorySlotRepository() *MemorySlotRepository {
	return &MemorySlotRepository{
		slots: make(map[string]*model.Slot),
		now:   time.Now,
	}
}

func (r *MemorySlotRepository) Create(_ context.Context, slot *model.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	}
	r.slots[slot.ID] = slot.Clone()
	return nil
}

func (r *MemorySlotRepository) FindByID(_ context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, slotserrors.ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[id]
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	return slot.Clone(), nil
}

func (r *MemorySlotRepository) FindActiveByProviderAndDate(_ context.Context, providerID, date string) ([]*model.Slot, error) {
	return r.filter(func(s *model.Slot) bool {
		return s.ProviderID == providerID && s.Date == date && s.IsActive()
	}, 0), nil
}

func (r *MemorySlotRepository) FindByProviderAndRange(_ context.Context, providerID, from, to string, status model.SlotStatus) ([]*model.Slot, error) {
	return r.filter(func(s *model.Slot) bool {
		if s.ProviderID != providerID || s.Date < from || s.Date > to {
			return false
		}
		return status == "" || s.Status == status
	}, 0), nil
}

func (r *MemorySlotRepository) FindStaleReservations(_ context.Context, cutoff time.Time, limit int) ([]*model.Slot, error) {
	return r.filter(func(s *model.Slot) bool {
		return s.Status == model.SlotReserved && s.Hold != nil && s.Hold.ReservedAt.Before(cutoff)
	}, limit), nil
}

func (r *MemorySlotRepository) filter(match func(*model.Slot) bool, limit int) []*model.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Slot{}
	for _, s := range r.slots {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	model.SortSlots(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MemorySlotRepository) DeleteAvailable(_ context.Context, id, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok || slot.ProviderID != providerID || slot.Status != model.SlotAvailable {
		return slotserrors.ErrStateChanged
	}
	delete(r.slots, id)
	return nil
}

func (r *MemorySlotRepository) Reserve(_ context.Context, id string, hold *model.Hold) (*model.Slot, error) {
	return r.transition(id, func(s *model.Slot) bool {
		if s.Status != model.SlotAvailable {
			return false
		}
		h := *hold
		s.Status = model.SlotReserved
		s.Hold = &h
		return true
	})
}

func (r *MemorySlotRepository) Confirm(_ context.Context, id, token string, booking *model.Booking) (*model.Slot, error) {
	return r.transition(id, func(s *model.Slot) bool {
		if s.Status != model.SlotReserved || s.Hold == nil || s.Hold.Token != token {
			return false
		}
		b := *booking
		s.Status = model.SlotBooked
		s.Booking = &b
		s.Hold = nil
		return true
	})
}

func (r *MemorySlotRepository) Release(_ context.Context, id, token string, reservedBefore *time.Time) (*model.Slot, error) {
	return r.transition(id, func(s *model.Slot) bool {
		if s.Status != model.SlotReserved || s.Hold == nil || s.Hold.Token != token {
			return false
		}
		if reservedBefore != nil && !s.Hold.ReservedAt.Before(*reservedBefore) {
			return false
		}
		s.Status = model.SlotAvailable
		s.Hold = nil
		s.ReleasedTokens = append(s.ReleasedTokens, token)
		if n := len(s.ReleasedTokens); n > model.MaxReleasedTokens {
			s.ReleasedTokens = s.ReleasedTokens[n-model.MaxReleasedTokens:]
		}
		return true
	})
}

// transition applies mutate to a copy of the slot and stores it only when
// mutate reports that its precondition held.
func (r *MemorySlotRepository) transition(id string, mutate func(*model.Slot) bool) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.slots[id]
	if !ok {
		return nil, slotserrors.ErrStateChanged
	}
	next := current.Clone()
	if !mutate(next) {
		return nil, slotserrors.ErrStateChanged
	}
	r.slots[id] = next
	return next.Clone(), nil
}

func (r *MemorySlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return mongotx.NoopTransactionManager{}.ExecuteTransaction(ctx, fn)
}
