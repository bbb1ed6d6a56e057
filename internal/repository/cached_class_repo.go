package repository

import (
	"context"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
)

const (
	upcomingClassesKeyPrefix = "classes:upcoming:"
	universalAccessKey       = "_universal"
	classListCacheTTL        = 2 * time.Minute
)

// CachedClassRepository wraps MongoClassRepository with Redis caching of upcoming lists.
// Single classes are always read from MongoDB: the meeting link is not part of the
// cached JSON representation.
type CachedClassRepository struct {
	mongo *MongoClassRepository
	cache *RedisCacheRepository
}

// NewCachedClassRepository creates a new cached class repository
func NewCachedClassRepository(mongo *MongoClassRepository, cache *RedisCacheRepository) *CachedClassRepository {
	return &CachedClassRepository{
		mongo: mongo,
		cache: cache,
	}
}

func upcomingClassesKey(packageID string) string {
	if packageID == "" {
		return upcomingClassesKeyPrefix + universalAccessKey
	}
	return upcomingClassesKeyPrefix + packageID
}

// ListUpcomingVisible serves the list from cache when possible. Cached lists are
// re-filtered against from, so classes that started since the fill are dropped.
func (r *CachedClassRepository) ListUpcomingVisible(ctx context.Context, packageID string, from time.Time, limit int64) ([]*domain.ScheduledClass, error) {
	key := upcomingClassesKey(packageID)

	var cached []*domain.ScheduledClass
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return truncateClasses(domain.FilterVisibleClasses(cached, packageID, from), limit), nil
	}

	// Cache miss - fetch the whole list so every limit can be served from it
	result, err := r.mongo.ListUpcomingVisible(ctx, packageID, from, 0)
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = r.cache.Set(ctx, key, result, classListCacheTTL)

	return truncateClasses(result, limit), nil
}

func truncateClasses(classes []*domain.ScheduledClass, limit int64) []*domain.ScheduledClass {
	if limit > 0 && int64(len(classes)) > limit {
		return classes[:limit]
	}
	return classes
}

// Create creates a class and invalidates every upcoming list
func (r *CachedClassRepository) Create(ctx context.Context, class *domain.ScheduledClass) error {
	if err := r.mongo.Create(ctx, class); err != nil {
		return err
	}
	_ = r.cache.DeleteByPattern(ctx, upcomingClassesKeyPrefix+"*")
	return nil
}

// Update updates a class and invalidates every upcoming list
func (r *CachedClassRepository) Update(ctx context.Context, class *domain.ScheduledClass) error {
	if err := r.mongo.Update(ctx, class); err != nil {
		return err
	}
	_ = r.cache.DeleteByPattern(ctx, upcomingClassesKeyPrefix+"*")
	return nil
}

// === Pass-through methods (no caching) ===

func (r *CachedClassRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledClass, error) {
	return r.mongo.GetByID(ctx, id)
}
