package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Slot_locks"

// SlotLock is an advisory lock document. The unique _id makes a second insert
// fail with a duplicate key error while the lock is held; the TTL index on
// expires_at removes locks whose holder crashed.
type SlotLock struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

type MongoLocker struct {
	collection *mongo.Collection
	lease      time.Duration
	wait       time.Duration
}

func NewMongoLocker(db *mongo.Database, lease, wait time.Duration) *MongoLocker {
	return &MongoLocker{
		collection: db.Collection(CollectionName),
		lease:      lease,
		wait:       wait,
	}
}

func (l *MongoLocker) Acquire(ctx context.Context, key string) (Release, error) {
	owner := uuid.NewString()

	err := retry(ctx, key, l.wait, func(ctx context.Context) (bool, error) {
		return l.tryInsert(ctx, key, owner)
	})
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		_, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
		if err != nil {
			return fmt.Errorf("failed to release slot lock %s: %w", key, err)
		}
		return nil
	}, nil
}

func (l *MongoLocker) tryInsert(ctx context.Context, key, owner string) (bool, error) {
	now := time.Now().UTC()
	lock := &SlotLock{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(l.lease),
		CreatedAt: now,
	}

	_, err := l.collection.InsertOne(ctx, lock)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to acquire slot lock %s: %w", key, err)
	}

	// The TTL monitor runs about once a minute, so an expired lock can linger.
	// Steal it only if it is still expired at delete time.
	result, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}})
	if err != nil {
		return false, fmt.Errorf("failed to clear expired slot lock %s: %w", key, err)
	}
	if result.DeletedCount > 0 {
		return l.tryInsert(ctx, key, owner)
	}
	return false, nil
}
