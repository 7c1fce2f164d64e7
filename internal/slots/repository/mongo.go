package repository

import (
	"context"
	"errors"
	"fmt"
	slotserrors "slotkeeper/internal/slots/errors"
	"slotkeeper/pkg/config"
	mongotx "slotkeeper/pkg/db/mongo"
	"slotkeeper/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return newMongoSlotRepository(cfg, db.Collection(CollectionName), mongotx.NewTransactionManager(cfg.Client.Mongo))
}

func newMongoSlotRepository(cfg *config.Config, collection *mongo.Collection, txManager mongotx.TransactionManager) *mongoSlotRepository {
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: collection,
		txManager:  txManager,
	}
}

// withTimeout wraps the context with a timeout unless it is a SessionContext,
// which cannot be wrapped without leaving the transaction.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindActiveByProviderAndDate(ctx context.Context, providerID, date string) ([]*model.Slot, error) {
	filter := bson.M{
		"provider_id": providerID,
		"date":        date,
		"status":      bson.M{"$in": []model.SlotStatus{model.SlotAvailable, model.SlotReserved}},
	}
	return r.find(ctx, filter, 0)
}

func (r *mongoSlotRepository) FindByProviderAndRange(ctx context.Context, providerID, from, to string, status model.SlotStatus) ([]*model.Slot, error) {
	filter := bson.M{
		"provider_id": providerID,
		"date":        bson.M{"$gte": from, "$lte": to},
	}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter, 0)
}

func (r *mongoSlotRepository) FindStaleReservations(ctx context.Context, cutoff time.Time, limit int) ([]*model.Slot, error) {
	filter := bson.M{
		"status":           model.SlotReserved,
		"hold.reserved_at": bson.M{"$lt": cutoff},
	}
	return r.find(ctx, filter, limit)
}

func (r *mongoSlotRepository) find(ctx context.Context, filter bson.M, limit int) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{
		{Key: "date", Value: 1},
		{Key: "start_time", Value: 1},
		{Key: "end_time", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := []*model.Slot{}
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) DeleteAvailable(ctx context.Context, id, providerID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "provider_id": providerID, "status": model.SlotAvailable}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	if result.DeletedCount == 0 {
		return slotserrors.ErrStateChanged
	}
	return nil
}

func (r *mongoSlotRepository) Reserve(ctx context.Context, id string, hold *model.Hold) (*model.Slot, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "status": model.SlotAvailable}
	update := bson.M{
		"$set": bson.M{
			"status": model.SlotReserved,
			"hold":   hold,
		},
	}
	return r.transition(ctx, filter, update, "reserve")
}

func (r *mongoSlotRepository) Confirm(ctx context.Context, id, token string, booking *model.Booking) (*model.Slot, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "status": model.SlotReserved, "hold.token": token}
	update := bson.M{
		"$set": bson.M{
			"status":  model.SlotBooked,
			"booking": booking,
		},
		"$unset": bson.M{"hold": ""},
	}
	return r.transition(ctx, filter, update, "confirm")
}

func (r *mongoSlotRepository) Release(ctx context.Context, id, token string, reservedBefore *time.Time) (*model.Slot, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": oid, "status": model.SlotReserved, "hold.token": token}
	if reservedBefore != nil {
		filter["hold.reserved_at"] = bson.M{"$lt": *reservedBefore}
	}
	update := bson.M{
		"$set":   bson.M{"status": model.SlotAvailable},
		"$unset": bson.M{"hold": ""},
		"$push": bson.M{
			"released_tokens": bson.M{
				"$each":  []string{token},
				"$slice": -model.MaxReleasedTokens,
			},
		},
	}
	return r.transition(ctx, filter, update, "release")
}

// transition applies a conditional update and returns the slot as written.
func (r *mongoSlotRepository) transition(ctx context.Context, filter, update bson.M, op string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.Slot
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrStateChanged
		}
		return nil, fmt.Errorf("failed to %s slot: %w", op, err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
