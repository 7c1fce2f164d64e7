package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	bookingserrors "slotkeeper/internal/bookings/errors"
	"slotkeeper/internal/bookings/events"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/internal/slots/pruner"
	"slotkeeper/internal/slots/repository"
	"slotkeeper/internal/slots/validator"
	"slotkeeper/pkg/clock"
	"slotkeeper/pkg/config"
	apperrors "slotkeeper/pkg/errors"
	"slotkeeper/pkg/interval"
	"slotkeeper/pkg/metrics"
	"slotkeeper/pkg/model"
	"slotkeeper/pkg/sealer"
	"time"
)

// maxSettleAttempts bounds how often a confirm or release re-reads the slot
// after losing a race with another writer.
const maxSettleAttempts = 3

type SweepResult struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Coordinator moves slots through available, reserved and booked. Every
// transition is one conditional write on the slot.
type Coordinator interface {
	Reserve(ctx context.Context, slotID, customerID string, req *model.ReserveRequest) (*model.Reservation, error)
	// Confirm books the held slot. Confirming a released token reports that
	// the reservation expired, as long as the token is still in the slot's
	// released history (model.MaxReleasedTokens entries). Older tokens are
	// reported as a token mismatch.
	Confirm(ctx context.Context, token string) (*model.Slot, error)
	// Release frees the held slot. Replaying a release is a no-op under the
	// same history bound as Confirm; beyond it the replay is a token mismatch.
	Release(ctx context.Context, token string, reason events.ReleaseReason) (*model.Slot, error)
	// Sweep releases reservations older than the reservation TTL.
	Sweep(ctx context.Context) (*SweepResult, error)
}

type coordinator struct {
	repo      repository.SlotRepository
	validator *validator.SlotValidator
	sealer    *sealer.Sealer
	pruner    *pruner.Pruner
	publisher events.Publisher
	metrics   *metrics.Collector
	clock     clock.Clock
	cfg       *config.Config
}

func NewCoordinator(
	repo repository.SlotRepository,
	validator *validator.SlotValidator,
	sealer *sealer.Sealer,
	publisher events.Publisher,
	m *metrics.Collector,
	clk clock.Clock,
	cfg *config.Config,
) Coordinator {
	return &coordinator{
		repo:      repo,
		validator: validator,
		sealer:    sealer,
		pruner:    pruner.New(clk, cfg.Location),
		publisher: publisher,
		metrics:   m,
		clock:     clk,
		cfg:       cfg,
	}
}

func (c *coordinator) Reserve(ctx context.Context, slotID, customerID string, req *model.ReserveRequest) (*model.Reservation, error) {
	if err := c.validator.Validate(req); err != nil {
		c.metrics.ReservationsTotal.WithLabelValues("rejected").Inc()
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperrors.Validation("Reservation validation failed", verrs.Details())
		}
		return nil, apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	slot, err := c.repo.FindByID(ctx, slotID)
	if err != nil {
		switch {
		case errors.Is(err, slotserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Slot", slotID)
		case errors.Is(err, slotserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		c.cfg.Log.Error("Failed to load slot for reservation", "slot_id", slotID, "error", err)
		return nil, apperrors.Internal("Failed to reserve slot", err)
	}

	sub, err := c.checkWindow(slot, req)
	if err != nil {
		c.metrics.ReservationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if slot.Status != model.SlotAvailable {
		c.metrics.ReservationsTotal.WithLabelValues("unavailable").Inc()
		return nil, slotUnavailable(slot.ID)
	}

	token, err := c.sealer.Seal(slot.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue reservation token", err)
	}

	now := c.clock.Now().UTC().Truncate(time.Millisecond)
	hold := &model.Hold{
		Token:      token,
		CustomerID: customerID,
		StartTime:  sub.Start.String(),
		EndTime:    sub.End.String(),
		ReservedAt: now,
	}

	updated, err := c.repo.Reserve(ctx, slot.ID, hold)
	if err != nil {
		if errors.Is(err, slotserrors.ErrStateChanged) {
			c.metrics.ReservationsTotal.WithLabelValues("unavailable").Inc()
			c.cfg.Log.Info("Reservation lost the race for slot", "slot_id", slot.ID, "customer_id", customerID)
			return nil, slotUnavailable(slot.ID)
		}
		c.cfg.Log.Error("Failed to reserve slot", "slot_id", slot.ID, "error", err)
		return nil, apperrors.Internal("Failed to reserve slot", err)
	}

	c.metrics.ReservationsTotal.WithLabelValues("reserved").Inc()
	c.publish(ctx, events.NewSlotEvent(events.SlotReserved, updated, now))

	c.cfg.Log.Info("Slot reserved",
		"slot_id", slot.ID,
		"customer_id", customerID,
		"start_time", hold.StartTime,
		"end_time", hold.EndTime,
	)

	return &model.Reservation{
		Token:      token,
		SlotID:     slot.ID,
		StartTime:  hold.StartTime,
		EndTime:    hold.EndTime,
		ReservedAt: now,
		ExpiresAt:  now.Add(c.cfg.ReservationTTL),
	}, nil
}

// checkWindow validates the requested sub-interval against the slot and the
// clock.
func (c *coordinator) checkWindow(slot *model.Slot, req *model.ReserveRequest) (interval.Interval, error) {
	window, err := slot.Interval()
	if err != nil {
		return interval.Interval{}, apperrors.Internal("Stored slot has an unreadable window", err)
	}

	sub, err := interval.Parse(slot.Date, req.StartTime, req.EndTime)
	if err != nil {
		return interval.Interval{}, apperrors.Wrap(err, slotserrors.CodeInvalidInterval, err.Error(), http.StatusUnprocessableEntity)
	}

	if !window.Covers(sub) {
		return interval.Interval{}, apperrors.Wrap(bookingserrors.ErrIntervalOutOfRange, bookingserrors.CodeIntervalOutOfRange,
			"Requested interval lies outside the slot", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{
				"slot_start_time": slot.StartTime,
				"slot_end_time":   slot.EndTime,
			})
	}

	if c.pruner.Expired(slot) || !sub.EndsAt(c.pruner.Location()).After(c.clock.Now()) {
		return interval.Interval{}, slotUnavailable(slot.ID)
	}
	return sub, nil
}

func (c *coordinator) Confirm(ctx context.Context, token string) (*model.Slot, error) {
	slot, err := c.lookup(ctx, token)
	if err != nil {
		c.metrics.ConfirmationsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		switch {
		case slot.BookedWith(token):
			c.metrics.ConfirmationsTotal.WithLabelValues("replayed").Inc()
			c.cfg.Log.Info("Duplicate confirmation ignored", "slot_id", slot.ID)
			return slot, nil

		case slot.HasReleased(token):
			c.metrics.ConfirmationsTotal.WithLabelValues("not_found").Inc()
			c.cfg.Log.Info("Confirmation for an expired reservation", "slot_id", slot.ID)
			return nil, reservationNotFound("Reservation expired or was released")

		case !slot.HeldBy(token):
			c.metrics.ConfirmationsTotal.WithLabelValues("mismatch").Inc()
			return nil, tokenMismatch(slot)
		}

		now := c.clock.Now().UTC().Truncate(time.Millisecond)
		booking := &model.Booking{
			Token:       token,
			CustomerID:  slot.Hold.CustomerID,
			StartTime:   slot.Hold.StartTime,
			EndTime:     slot.Hold.EndTime,
			ConfirmedAt: now,
		}

		updated, err := c.repo.Confirm(ctx, slot.ID, token, booking)
		if err == nil {
			c.metrics.ConfirmationsTotal.WithLabelValues("booked").Inc()
			c.publish(ctx, events.NewSlotEvent(events.SlotBooked, updated, now))
			c.cfg.Log.Info("Reservation confirmed",
				"slot_id", updated.ID,
				"customer_id", booking.CustomerID,
			)
			return updated, nil
		}
		if !errors.Is(err, slotserrors.ErrStateChanged) || attempt == maxSettleAttempts {
			return nil, c.settleFailure("confirm", slot.ID, err)
		}

		if slot, err = c.reload(ctx, slot.ID); err != nil {
			return nil, err
		}
	}
}

func (c *coordinator) Release(ctx context.Context, token string, reason events.ReleaseReason) (*model.Slot, error) {
	slot, err := c.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		switch {
		case slot.HasReleased(token):
			c.cfg.Log.Info("Duplicate release ignored", "slot_id", slot.ID, "reason", reason)
			return slot, nil

		case slot.BookedWith(token):
			return nil, apperrors.Wrap(bookingserrors.ErrReservationFinalized, bookingserrors.CodeReservationFinalized,
				"Reservation is already booked", http.StatusConflict)

		case !slot.HeldBy(token):
			return nil, tokenMismatch(slot)
		}

		updated, err := c.repo.Release(ctx, slot.ID, token, nil)
		if err == nil {
			c.released(ctx, updated, reason)
			return updated, nil
		}
		if !errors.Is(err, slotserrors.ErrStateChanged) || attempt == maxSettleAttempts {
			return nil, c.settleFailure("release", slot.ID, err)
		}

		if slot, err = c.reload(ctx, slot.ID); err != nil {
			return nil, err
		}
	}
}

func (c *coordinator) released(ctx context.Context, slot *model.Slot, reason events.ReleaseReason) {
	c.metrics.ReleasesTotal.WithLabelValues(string(reason)).Inc()
	c.publish(ctx, events.NewSlotEvent(events.SlotReleased, slot, c.clock.Now()).WithReason(reason))
	c.cfg.Log.Info("Reservation released", "slot_id", slot.ID, "reason", reason)
}

func (c *coordinator) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	c.metrics.SweepRunsTotal.Inc()
	defer func() {
		c.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := c.clock.Now().Add(-c.cfg.ReservationTTL)
	batchSize := max(c.cfg.SweepBatchSize, 1)
	result := &SweepResult{}

	for {
		stale, err := c.repo.FindStaleReservations(ctx, cutoff, batchSize)
		if err != nil {
			c.metrics.SweepErrorsTotal.Inc()
			c.cfg.Log.Error("Failed to find stale reservations", "cutoff", cutoff, "error", err)
			return result, apperrors.Internal("Failed to sweep reservations", err)
		}

		progressed := false
		for _, slot := range stale {
			result.Scanned++
			// The cutoff condition lets a confirm that lands first win cleanly.
			updated, err := c.repo.Release(ctx, slot.ID, slot.Hold.Token, &cutoff)
			switch {
			case err == nil:
				result.Released++
				progressed = true
				c.released(ctx, updated, events.ReasonTimeout)
			case errors.Is(err, slotserrors.ErrStateChanged):
				result.Skipped++
			default:
				result.Failed++
				c.metrics.SweepErrorsTotal.Inc()
				c.cfg.Log.Warn("Failed to release stale reservation", "slot_id", slot.ID, "error", err)
			}
		}

		if len(stale) < batchSize || !progressed || ctx.Err() != nil {
			break
		}
	}

	if result.Scanned > 0 {
		c.cfg.Log.Info("Reservation sweep completed",
			"scanned", result.Scanned,
			"released", result.Released,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// lookup opens token and loads the slot it was issued for.
func (c *coordinator) lookup(ctx context.Context, token string) (*model.Slot, error) {
	slotID, err := c.sealer.Open(token)
	if err != nil {
		return nil, reservationNotFound("Reservation not found")
	}

	slot, err := c.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) || errors.Is(err, slotserrors.ErrInvalidID) {
			return nil, reservationNotFound("Reservation not found")
		}
		c.cfg.Log.Error("Failed to load slot for reservation token", "slot_id", slotID, "error", err)
		return nil, apperrors.Internal("Failed to load reservation", err)
	}
	return slot, nil
}

func (c *coordinator) reload(ctx context.Context, slotID string) (*model.Slot, error) {
	slot, err := c.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return nil, reservationNotFound("Reservation not found")
		}
		return nil, apperrors.Internal("Failed to reload slot", err)
	}
	return slot, nil
}

func (c *coordinator) settleFailure(op, slotID string, err error) error {
	c.cfg.Log.Error(fmt.Sprintf("Failed to %s reservation", op), "slot_id", slotID, "error", err)
	if errors.Is(err, slotserrors.ErrStateChanged) {
		return apperrors.Unavailablef("Slot %s is changing, retry", slotID)
	}
	return apperrors.Internal(fmt.Sprintf("Failed to %s reservation", op), err)
}

func (c *coordinator) publish(ctx context.Context, event events.SlotEvent) {
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.cfg.Log.Warn("Failed to publish slot event",
			"type", event.Type,
			"slot_id", event.SlotID,
			"error", err,
		)
	}
}

func slotUnavailable(slotID string) error {
	return apperrors.Wrap(bookingserrors.ErrSlotUnavailable, bookingserrors.CodeSlotUnavailable,
		"Slot is not available", http.StatusConflict).
		WithDetails(map[string]any{"slot_id": slotID})
}

func reservationNotFound(message string) error {
	return apperrors.Wrap(bookingserrors.ErrReservationNotFound, bookingserrors.CodeReservationNotFound,
		message, http.StatusNotFound)
}

func tokenMismatch(slot *model.Slot) error {
	return apperrors.Wrap(bookingserrors.ErrTokenMismatch, bookingserrors.CodeTokenMismatch,
		"Reservation token does not match the slot", http.StatusConflict).
		WithDetails(map[string]any{"slot_id": slot.ID, "status": slot.Status})
}
