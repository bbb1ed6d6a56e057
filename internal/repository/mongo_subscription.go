package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSubscriptionRepository implements domain.SubscriptionRepository.
// Each user owns at most one subscription document (unique user_id).
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new subscription repository
func NewMongoSubscriptionRepository(db *mongo.Database) *MongoSubscriptionRepository {
	coll := db.Collection("user_subscriptions")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoSubscriptionRepository{
		collection: coll,
	}
}

// Upsert creates or replaces the user's subscription with a single FindOneAndUpdate.
// Two concurrent upserts for a new user can both miss the filter; the loser hits the
// unique index and is retried once, which then matches the winner's document.
func (r *MongoSubscriptionRepository) Upsert(ctx context.Context, userID, packageID string, startDate, endDate time.Time) (*domain.UserSubscription, error) {
	sub, err := r.upsert(ctx, userID, packageID, startDate, endDate)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		sub, err = r.upsert(ctx, userID, packageID, startDate, endDate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return sub, nil
}

func (r *MongoSubscriptionRepository) upsert(ctx context.Context, userID, packageID string, startDate, endDate time.Time) (*domain.UserSubscription, error) {
	update := bson.M{
		"$set": bson.M{
			"package_id": packageID,
			"start_date": startDate,
			"end_date":   endDate,
			"is_active":  true,
			"updated_at": startDate,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": startDate,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var sub domain.UserSubscription
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *MongoSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	var sub domain.UserSubscription
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&sub); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// Deactivate flips an active subscription to inactive. Already inactive rows are left alone.
func (r *MongoSubscriptionRepository) Deactivate(ctx context.Context, userID string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return nil
}

func (r *MongoSubscriptionRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}
