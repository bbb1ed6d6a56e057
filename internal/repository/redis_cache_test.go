package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheRepository(client), mr
}

func TestRedisCacheRepository(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, cache.Get(ctx, "missing", &out), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k1", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, cache.Get(ctx, "k1", &out))
	assert.Equal(t, 1, out["a"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "k1", &out), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "classes:upcoming:a", 1, time.Minute))
	require.NoError(t, cache.Set(ctx, "classes:upcoming:b", 2, time.Minute))
	require.NoError(t, cache.Set(ctx, "other", 3, time.Minute))
	require.NoError(t, cache.DeleteByPattern(ctx, "classes:upcoming:*"))
	assert.False(t, mr.Exists("classes:upcoming:a"))
	assert.False(t, mr.Exists("classes:upcoming:b"))
	assert.True(t, mr.Exists("other"))

	require.NoError(t, mr.Set("garbled", "{not json"))
	assert.ErrorIs(t, cache.Get(ctx, "garbled", &out), ErrCacheMiss)
}

func TestDeleteByPatternManyKeys(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("classes:upcoming:pkg_%d", i), "[]"))
	}
	require.NoError(t, cache.DeleteByPattern(ctx, "classes:upcoming:*"))
	assert.Empty(t, mr.Keys())
}

func TestCachedClassRepositoryRefiltersCachedList(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cachedList := []*domain.ScheduledClass{
		{ID: "started", Title: "Started", StartTime: now.Add(-time.Minute)},
		{ID: "soon", Title: "Soon", StartTime: now.Add(time.Hour)},
		{ID: "later", Title: "Later", StartTime: now.Add(2 * time.Hour), PackageIDs: []string{"pkg_gold"}},
	}
	require.NoError(t, cache.Set(ctx, upcomingClassesKey("pkg_gold"), cachedList, time.Minute))

	// A cache hit never reaches MongoDB
	repo := NewCachedClassRepository(nil, cache)

	got, err := repo.ListUpcomingVisible(ctx, "pkg_gold", now, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "soon", got[0].ID)
	assert.Equal(t, "later", got[1].ID)

	limited, err := repo.ListUpcomingVisible(ctx, "pkg_gold", now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "soon", limited[0].ID)
}

func TestUpcomingClassesKey(t *testing.T) {
	assert.Equal(t, "classes:upcoming:_universal", upcomingClassesKey(""))
	assert.Equal(t, "classes:upcoming:pkg_gold", upcomingClassesKey("pkg_gold"))
}
