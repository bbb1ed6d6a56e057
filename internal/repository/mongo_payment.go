package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPaymentRepository implements domain.PaymentRepository
type MongoPaymentRepository struct {
	collection *mongo.Collection
}

// NewMongoPaymentRepository creates a new payment history repository
func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	coll := db.Collection("payment_history")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "payment_date", Value: -1}}},
	})

	return &MongoPaymentRepository{
		collection: coll,
	}
}

func (r *MongoPaymentRepository) Create(ctx context.Context, payment *domain.PaymentHistory) error {
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	payment.UpdatedAt = payment.PaymentDate

	objID := primitive.NewObjectID()
	payment.ID = objID.Hex()

	doc := bson.M{
		"_id":            objID,
		"user_id":        payment.UserID,
		"package_id":     payment.PackageID,
		"package_name":   payment.PackageName,
		"amount":         payment.Amount,
		"currency":       payment.Currency,
		"transaction_id": payment.TransactionID,
		"status":         payment.Status,
		"payment_date":   payment.PaymentDate,
		"updated_at":     payment.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentHistory, error) {
	var payment domain.PaymentHistory
	if err := r.collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// ListByUserID returns the user's payments, newest first
func (r *MongoPaymentRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.PaymentHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "payment_date", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments by user: %w", err)
	}
	defer cursor.Close(ctx)

	payments := make([]*domain.PaymentHistory, 0)
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

// MarkSuccess settles a pending or failed payment in one conditional write.
// A payment that is already successful does not match, so only one caller wins.
func (r *MongoPaymentRepository) MarkSuccess(ctx context.Context, transactionID, gatewayPaymentID string, settledAt time.Time) (*domain.PaymentHistory, error) {
	filter := bson.M{
		"transaction_id": transactionID,
		"status": bson.M{"$in": bson.A{
			domain.PaymentStatusPending,
			domain.PaymentStatusFailed,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"status":             domain.PaymentStatusSuccess,
			"gateway_payment_id": gatewayPaymentID,
			"settled_at":         settledAt,
			"updated_at":         settledAt,
		},
		"$unset": bson.M{"failure_reason": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var payment domain.PaymentHistory
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark payment successful: %w", err)
	}
	return &payment, nil
}

func (r *MongoPaymentRepository) MarkFailed(ctx context.Context, transactionID, reason string, at time.Time) error {
	filter := bson.M{
		"transaction_id": transactionID,
		"status":         domain.PaymentStatusPending,
	}
	update := bson.M{
		"$set": bson.M{
			"status":         domain.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     at,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
