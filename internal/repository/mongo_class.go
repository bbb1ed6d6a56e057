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

type MongoClassRepository struct {
	collection *mongo.Collection
}

func NewMongoClassRepository(db *mongo.Database) *MongoClassRepository {
	coll := db.Collection("scheduled_classes")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "package_ids", Value: 1}, {Key: "start_time", Value: 1}}},
	})

	return &MongoClassRepository{
		collection: coll,
	}
}

func (r *MongoClassRepository) Create(ctx context.Context, class *domain.ScheduledClass) error {
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	if class.PackageIDs == nil {
		class.PackageIDs = []string{}
	}

	result, err := r.collection.InsertOne(ctx, class)
	if err != nil {
		return fmt.Errorf("failed to create class: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		class.ID = oid.Hex()
	}
	return nil
}

func (r *MongoClassRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledClass, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var class domain.ScheduledClass
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&class); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return &class, nil
}

func (r *MongoClassRepository) Update(ctx context.Context, class *domain.ScheduledClass) error {
	oid, err := primitive.ObjectIDFromHex(class.ID)
	if err != nil {
		return domain.ErrInvalidID
	}
	class.UpdatedAt = time.Now().UTC()
	if class.PackageIDs == nil {
		class.PackageIDs = []string{}
	}

	update := bson.M{
		"$set": bson.M{
			"title":        class.Title,
			"description":  class.Description,
			"start_time":   class.StartTime,
			"end_time":     class.EndTime,
			"instructor":   class.Instructor,
			"meeting_link": class.MeetingLink,
			"package_ids":  class.PackageIDs,
			"updated_at":   class.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update class: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUpcomingVisible matches universal classes (no package_ids, empty or null)
// and, when packageID is set, classes whose package_ids contain it.
func (r *MongoClassRepository) ListUpcomingVisible(ctx context.Context, packageID string, from time.Time, limit int64) ([]*domain.ScheduledClass, error) {
	access := bson.A{
		bson.M{"package_ids": bson.M{"$exists": false}},
		bson.M{"package_ids": nil},
		bson.M{"package_ids": bson.M{"$size": 0}},
	}
	if packageID != "" {
		access = append(access, bson.M{"package_ids": packageID})
	}

	filter := bson.M{
		"start_time": bson.M{"$gte": from},
		"$or":        access,
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming classes: %w", err)
	}
	defer cursor.Close(ctx)

	classes := make([]*domain.ScheduledClass, 0)
	if err := cursor.All(ctx, &classes); err != nil {
		return nil, fmt.Errorf("failed to decode classes: %w", err)
	}
	return classes, nil
}
