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

// MongoUserRepository implements domain.UserRepository
type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	coll := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Email is the username
	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "roles", Value: 1}}},
	})

	return &MongoUserRepository{
		collection: coll,
	}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if len(user.Roles) == 0 {
		user.Roles = []string{domain.RoleStudent}
	}
	objID := primitive.NewObjectID()

	doc := bson.M{
		"_id":           objID,
		"email":         user.Email,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"password_hash": user.PasswordHash,
		"is_active":     user.IsActive,
		"roles":         user.Roles,
		"profile":       user.Profile,
		"created_at":    user.CreatedAt,
		"updated_at":    user.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = objID.Hex()
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Update writes the editable name and profile fields.
// Credentials, activation and avatar have their own methods.
func (r *MongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	set := bson.M{
		"first_name":           user.FirstName,
		"last_name":            user.LastName,
		"profile.phone_number": user.Profile.PhoneNumber,
		"profile.bio":          user.Profile.Bio,
		"profile.gender":       user.Profile.Gender,
		"profile.push_token":   user.Profile.PushToken,
		"updated_at":           user.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if user.Profile.DateOfBirth != nil {
		set["profile.date_of_birth"] = user.Profile.DateOfBirth
	} else {
		update["$unset"] = bson.M{"profile.date_of_birth": ""}
	}

	return r.updateByID(ctx, user.ID, update, "user")
}

func (r *MongoUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{"is_active": active, "updated_at": time.Now().UTC()},
	}, "activation")
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()},
	}, "password")
}

func (r *MongoUserRepository) UpdateAvatar(ctx context.Context, id string, avatarURL string) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{"profile.avatar_url": avatarURL, "updated_at": time.Now().UTC()},
	}, "avatar")
}

// AddRole grants a role without duplicating it
func (r *MongoUserRepository) AddRole(ctx context.Context, id string, role string) error {
	return r.updateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"roles": role},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}, "role")
}

func (r *MongoUserRepository) updateByID(ctx context.Context, id string, update bson.M, what string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidID
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
