package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slotkeeper/internal/bookings/events"
	"slotkeeper/internal/slots/conflict"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/internal/slots/lock"
	"slotkeeper/internal/slots/pruner"
	"slotkeeper/internal/slots/recurrence"
	"slotkeeper/internal/slots/repository"
	"slotkeeper/internal/slots/validator"
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/config"
	mongotx "slotkeeper/pkg/db/mongo"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/interval"
	"slotkeeper/pkg/metrics"
	"slotkeeper/pkg/model"
)

type SlotService interface {
	// Create inserts the seed slot and every recurrence occurrence
	// independently. Conflicting occurrences are reported, not fatal.
	Create(ctx context.Context, req *model.CreateSlotRequest) ([]*model.CreationResult, error)
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	Remove(ctx context.Context, id, providerID string) error

	Query(ctx context.Context, providerID, from, to string) ([]*model.Slot, error)
	ListAvailable(ctx context.Context, providerID, from, to string) ([]*model.Slot, error)
	History(ctx context.Context, providerID, from, to string) ([]*model.Slot, error)
}

type slotService struct {
	repo      repository.SlotRepository
	validator *validator.SlotValidator
	locker    lock.Locker
	expander  *recurrence.Expander
	pruner    *pruner.Pruner
	publisher events.Publisher
	metrics   *metrics.Collector
	clock     clock.Clock
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	validator *validator.SlotValidator,
	locker lock.Locker,
	publisher events.Publisher,
	m *metrics.Collector,
	clk clock.Clock,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		validator: validator,
		locker:    locker,
		expander:  recurrence.NewExpander(cfg.MaxOccurrences),
		pruner:    pruner.New(clk, cfg.Location),
		publisher: publisher,
		metrics:   m,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *slotService) Create(ctx context.Context, req *model.CreateSlotRequest) ([]*model.CreationResult, error) {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Slot validation failed",
			"provider_id", req.ProviderID,
			"date", req.Date,
			"error", err,
		)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperrors.Validation("Slot validation failed", verrs.Details())
		}
		return nil, apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}

	seed, err := interval.Parse(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperrors.Wrap(err, slotserrors.CodeInvalidInterval, err.Error(), http.StatusUnprocessableEntity)
	}

	policy, err := recurrence.FromRequest(req.Recurrence)
	if err != nil {
		return nil, apperrors.Wrap(err, slotserrors.CodeInvalidRecurrence, err.Error(), http.StatusUnprocessableEntity)
	}
	extra, err := s.expander.Expand(seed.Date, policy)
	if err != nil {
		return nil, apperrors.Wrap(err, slotserrors.CodeInvalidRecurrence, err.Error(), http.StatusUnprocessableEntity)
	}

	candidates := make([]interval.Interval, 0, len(extra)+1)
	candidates = append(candidates, seed)
	for _, d := range extra {
		candidates = append(candidates, seed.WithDate(d))
	}

	// A failed seed leaves nothing stored and fails the request. Once the seed
	// is through, a failed occurrence becomes a "failed" entry and the rest are
	// still attempted; after the context ends they fail without being tried.
	results := make([]*model.CreationResult, 0, len(candidates))
	for i, candidate := range candidates {
		var result *model.CreationResult
		err := ctx.Err()
		if err == nil {
			result, err = s.insert(ctx, req.ProviderID, candidate)
		}
		if err == nil {
			results = append(results, result)
			continue
		}

		appErr := s.translateInsertError(err)
		if i == 0 {
			s.cfg.Log.Error("Slot creation aborted",
				"provider_id", req.ProviderID,
				"date", candidate.Date.String(),
				"error", err,
			)
			return nil, appErr
		}
		s.cfg.Log.Error("Slot occurrence failed",
			"provider_id", req.ProviderID,
			"date", candidate.Date.String(),
			"created_before_failure", countCreated(results),
			"error", err,
		)
		results = append(results, &model.CreationResult{
			Date:   candidate.Date.String(),
			Status: model.CreationFailed,
			Error:  &model.CreationFailure{Code: appErr.Code, Message: appErr.Message},
		})
	}

	if len(results) == 1 && results[0].Status == model.CreationConflict {
		c := results[0].Conflict
		return nil, apperrors.New(slotserrors.CodeSlotConflict, "Slot overlaps an existing slot", http.StatusConflict).
			WithDetails(map[string]any{
				"existing_slot_id":    c.ExistingSlotID,
				"existing_start_time": c.ExistingStartTime,
				"existing_end_time":   c.ExistingEndTime,
			})
	}

	s.cfg.Log.Info("Slot creation completed",
		"provider_id", req.ProviderID,
		"occurrences", len(results),
		"created", countCreated(results),
		"failed", countStatus(results, model.CreationFailed),
	)

	return results, nil
}

// insert runs the conflict check and the write for one occurrence while
// holding the provider-day lock.
func (s *slotService) insert(ctx context.Context, providerID string, candidate interval.Interval) (*model.CreationResult, error) {
	date := candidate.Date.String()

	release, err := s.locker.Acquire(ctx, lock.Key(providerID, date))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.cfg.Log.Warn("Failed to release slot day lock",
				"provider_id", providerID,
				"date", date,
				"error", err,
			)
		}
	}()

	slot := &model.Slot{
		ProviderID: providerID,
		Date:       date,
		StartTime:  candidate.Start.String(),
		EndTime:    candidate.End.String(),
		Status:     model.SlotAvailable,
		CreatedAt:  s.clock.Now().UTC(),
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindActiveByProviderAndDate(txCtx, providerID, date)
		if err != nil {
			return fmt.Errorf("failed to load slots for %s: %w", date, err)
		}
		if err := conflict.Detect(candidate, existing); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, slot); err != nil {
			return fmt.Errorf("failed to create slot: %w", err)
		}
		return nil
	})

	var conflictErr *conflict.ConflictError
	if errors.As(err, &conflictErr) {
		s.metrics.SlotConflictsTotal.Inc()
		s.cfg.Log.Info("Slot occurrence conflicts with an existing slot",
			"provider_id", providerID,
			"date", date,
			"existing_slot_id", conflictErr.Existing.ID,
		)
		return &model.CreationResult{
			Date:     date,
			Status:   model.CreationConflict,
			Conflict: conflictErr.Details(),
		}, nil
	}
	if errors.Is(err, mongotx.ErrTransactionsUnsupported) {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "Slot store cannot run transactions", http.StatusServiceUnavailable)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.SlotsCreatedTotal.Inc()
	s.publish(ctx, events.NewSlotEvent(events.SlotCreated, slot, s.clock.Now()))

	return &model.CreationResult{
		Date:   date,
		Status: model.CreationCreated,
		Slot:   slot,
	}, nil
}

func (s *slotService) translateInsertError(err error) *apperrors.AppError {
	if errors.Is(err, slotserrors.ErrLockTimeout) {
		return apperrors.Unavailablef("Slot day is busy, retry")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("Slot creation timed out")
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal("Failed to create slot", err)
}

func countCreated(results []*model.CreationResult) int {
	return countStatus(results, model.CreationCreated)
}

func countStatus(results []*model.CreationResult, status model.CreationStatus) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateLookupError(err, id)
	}
	return slot, nil
}

func (s *slotService) translateLookupError(err error, id string) error {
	switch {
	case errors.Is(err, slotserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot", id)
	case errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid slot ID format")
	}
	s.cfg.Log.Error("Failed to get slot by ID",
		"slot_id", id,
		"error", err,
	)
	return apperrors.Internal("Failed to retrieve slot", err)
}

func (s *slotService) Remove(ctx context.Context, id, providerID string) error {
	if providerID == "" {
		return apperrors.Unauthorized("Provider identity is required")
	}

	slot, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if slot.ProviderID != providerID {
		s.cfg.Log.Warn("Provider attempted to remove a slot it does not own",
			"slot_id", id,
			"provider_id", providerID,
			"owner_id", slot.ProviderID,
		)
		return apperrors.Forbidden("Slot belongs to another provider")
	}
	if slot.Status != model.SlotAvailable {
		return s.notRemovable(slot.Status)
	}

	if err := s.repo.DeleteAvailable(ctx, id, providerID); err != nil {
		switch {
		case errors.Is(err, slotserrors.ErrStateChanged):
			return s.notRemovable("")
		case errors.Is(err, slotserrors.ErrNotFound):
			return apperrors.NotFoundWithID("Slot", id)
		}
		s.cfg.Log.Error("Failed to remove slot",
			"slot_id", id,
			"provider_id", providerID,
			"error", err,
		)
		return apperrors.Internal("Failed to remove slot", err)
	}

	s.metrics.SlotsRemovedTotal.Inc()
	s.publish(ctx, events.NewSlotEvent(events.SlotRemoved, slot, s.clock.Now()))

	s.cfg.Log.Info("Slot removed",
		"slot_id", id,
		"provider_id", providerID,
		"date", slot.Date,
	)
	return nil
}

func (s *slotService) notRemovable(status model.SlotStatus) error {
	err := apperrors.Wrap(slotserrors.ErrNotRemovable, slotserrors.CodeSlotNotRemovable,
		"Only available slots can be removed", http.StatusConflict)
	if status != "" {
		err = err.WithDetails(map[string]any{"status": status})
	}
	return err
}

func (s *slotService) Query(ctx context.Context, providerID, from, to string) ([]*model.Slot, error) {
	slots, err := s.findRange(ctx, providerID, from, to, "")
	if err != nil {
		return nil, err
	}
	return s.prune(slots), nil
}

func (s *slotService) ListAvailable(ctx context.Context, providerID, from, to string) ([]*model.Slot, error) {
	slots, err := s.findRange(ctx, providerID, from, to, model.SlotAvailable)
	if err != nil {
		return nil, err
	}
	return s.prune(slots), nil
}

// History is the unpruned audit view of a provider's range.
func (s *slotService) History(ctx context.Context, providerID, from, to string) ([]*model.Slot, error) {
	return s.findRange(ctx, providerID, from, to, "")
}

func (s *slotService) prune(slots []*model.Slot) []*model.Slot {
	kept := s.pruner.Filter(slots)
	if dropped := len(slots) - len(kept); dropped > 0 {
		s.metrics.SlotsPrunedTotal.Add(float64(dropped))
	}
	return kept
}

func (s *slotService) findRange(ctx context.Context, providerID, from, to string, status model.SlotStatus) ([]*model.Slot, error) {
	if providerID == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}
	if err := s.checkRange(from, to); err != nil {
		return nil, err
	}

	slots, err := s.repo.FindByProviderAndRange(ctx, providerID, from, to, status)
	if err != nil {
		s.cfg.Log.Error("Failed to query slots",
			"provider_id", providerID,
			"from", from,
			"to", to,
			"status", status,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to query slots", err)
	}
	return slots, nil
}

func (s *slotService) checkRange(from, to string) error {
	fromDate, err := interval.ParseDate(from)
	if err != nil {
		return s.invalidRange("from must be a date in YYYY-MM-DD format", from, to)
	}
	toDate, err := interval.ParseDate(to)
	if err != nil {
		return s.invalidRange("to must be a date in YYYY-MM-DD format", from, to)
	}
	if fromDate.After(toDate) {
		return s.invalidRange("from must not be after to", from, to)
	}
	if days := fromDate.DaysUntil(toDate) + 1; days > s.cfg.MaxQueryRangeDays {
		return s.invalidRange(fmt.Sprintf("range covers %d days, at most %d allowed", days, s.cfg.MaxQueryRangeDays), from, to)
	}
	return nil
}

func (s *slotService) invalidRange(message, from, to string) error {
	return apperrors.New(slotserrors.CodeInvalidQueryRange, message, http.StatusUnprocessableEntity).
		WithDetails(map[string]any{"from": from, "to": to})
}

func (s *slotService) publish(ctx context.Context, event events.SlotEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish slot event",
			"type", event.Type,
			"slot_id", event.SlotID,
			"error", err,
		)
	}
}
