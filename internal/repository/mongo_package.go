package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPackageRepository implements domain.PackageRepository
type MongoPackageRepository struct {
	collection *mongo.Collection
}

// NewMongoPackageRepository creates a new package repository
func NewMongoPackageRepository(db *mongo.Database) *MongoPackageRepository {
	coll := db.Collection("class_packages")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "price", Value: 1}},
	})

	return &MongoPackageRepository{
		collection: coll,
	}
}

func (r *MongoPackageRepository) Create(ctx context.Context, pkg *domain.ClassPackage) error {
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	doc := bson.M{
		"_id":             pkg.ID, // string ID derived from the name, e.g. "pkg_gold"
		"name":            pkg.Name,
		"description":     pkg.Description,
		"price":           pkg.Price,
		"duration_months": pkg.DurationMonths,
		"max_classes":     pkg.MaxClasses,
		"is_active":       pkg.IsActive,
		"created_at":      pkg.CreatedAt,
		"updated_at":      pkg.UpdatedAt,
	}

	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			verr := domain.NewValidationError()
			verr.Add("name", "a package with this name already exists")
			return verr
		}
		return fmt.Errorf("failed to create package: %w", err)
	}
	return nil
}

func (r *MongoPackageRepository) GetByID(ctx context.Context, id string) (*domain.ClassPackage, error) {
	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return mapBsonToPackage(raw), nil
}

// GetActivePackages lists purchasable packages, cheapest first
func (r *MongoPackageRepository) GetActivePackages(ctx context.Context) ([]*domain.ClassPackage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active packages: %w", err)
	}
	defer cursor.Close(ctx)

	packages := make([]*domain.ClassPackage, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		packages = append(packages, mapBsonToPackage(raw))
	}
	return packages, cursor.Err()
}

func (r *MongoPackageRepository) Update(ctx context.Context, pkg *domain.ClassPackage) error {
	pkg.UpdatedAt = time.Now().UTC()

	update := bson.M{
		"$set": bson.M{
			"name":            pkg.Name,
			"description":     pkg.Description,
			"price":           pkg.Price,
			"duration_months": pkg.DurationMonths,
			"max_classes":     pkg.MaxClasses,
			"is_active":       pkg.IsActive,
			"updated_at":      pkg.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": pkg.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update package: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DefaultPackages are the tiers created by the seeder
func DefaultPackages() []*domain.ClassPackage {
	return []*domain.ClassPackage{
		{
			ID:             "pkg_bronze",
			Name:           "Bronze",
			Description:    "Weekly group vocal classes for one month",
			Price:          99900, // INR 999.00
			DurationMonths: 1,
			MaxClasses:     4,
			IsActive:       true,
		},
		{
			ID:             "pkg_silver",
			Name:           "Silver",
			Description:    "Group vocal and instrument classes for three months",
			Price:          249900,
			DurationMonths: 3,
			MaxClasses:     16,
			IsActive:       true,
		},
		{
			ID:             "pkg_gold",
			Name:           "Gold",
			Description:    "Every live class including masterclasses for six months",
			Price:          449900,
			DurationMonths: 6,
			MaxClasses:     0, // unlimited
			IsActive:       true,
		},
	}
}

// SeedDefaultPackages seeds the default packages if they don't exist
// Idempotency: checks by _id (not by name) to prevent duplicates
func (r *MongoPackageRepository) SeedDefaultPackages(ctx context.Context) error {
	for _, pkg := range DefaultPackages() {
		_, err := r.GetByID(ctx, pkg.ID)
		if err == nil {
			log.Printf("[Seed] Package %s already exists, skipping", pkg.ID)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to check package existence: %w", err)
		}

		if err := r.Create(ctx, pkg); err != nil {
			return fmt.Errorf("failed to seed package %s: %w", pkg.ID, err)
		}
		log.Printf("[Seed] Created package: %s (%s) - Price: %s, Duration: %d months",
			pkg.ID, pkg.Name, domain.FormatAmount(pkg.Price), pkg.DurationMonths)
	}
	return nil
}

func mapBsonToPackage(raw bson.M) *domain.ClassPackage {
	pkg := &domain.ClassPackage{}

	if id, ok := raw["_id"].(string); ok {
		pkg.ID = id
	}
	if name, ok := raw["name"].(string); ok {
		pkg.Name = name
	}
	if desc, ok := raw["description"].(string); ok {
		pkg.Description = desc
	}
	pkg.Price = bsonInt64(raw["price"])
	pkg.DurationMonths = int(bsonInt64(raw["duration_months"]))
	pkg.MaxClasses = int(bsonInt64(raw["max_classes"]))
	if isActive, ok := raw["is_active"].(bool); ok {
		pkg.IsActive = isActive
	}
	if created, ok := raw["created_at"].(interface{ Time() time.Time }); ok {
		pkg.CreatedAt = created.Time()
	}
	if updated, ok := raw["updated_at"].(interface{ Time() time.Time }); ok {
		pkg.UpdatedAt = updated.Time()
	}

	return pkg
}

// bsonInt64 reads a numeric field regardless of the width it was stored with
func bsonInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
