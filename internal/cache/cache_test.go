package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisClientFrom(client), mr
}

func TestLock_ExclusiveUntilReleased(t *testing.T) {
	rc, _ := newTestRedis(t)
	ctx := context.Background()

	first := NewLock(rc, "lock:sweep", time.Minute)
	second := NewLock(rc, "lock:sweep", time.Minute)

	release, err := first.Acquire(ctx)
	require.NoError(t, err)

	_, err = second.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))

	release2, err := second.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestLock_ExpiresAndStaleReleaseIsNoop(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()

	l := NewLock(rc, "lock:sweep", time.Minute)
	staleRelease, err := l.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	release, err := l.Acquire(ctx)
	require.NoError(t, err)

	// The expired holder must not drop the new holder's lock.
	require.NoError(t, staleRelease(ctx))
	held, err := rc.Exists(ctx, "lock:sweep")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, release(ctx))
}

func TestCatalogCache_SetGetInvalidate(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()
	c := NewCatalogCache(rc, time.Minute)

	type entry struct {
		Name string `json:"name"`
	}

	var got []entry
	hit, err := c.Get(ctx, ServicesKey(0), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, ServicesKey(0), []entry{{Name: "Rhinoplasty"}}))
	require.NoError(t, c.Set(ctx, ServicesKey(3), []entry{{Name: "Blepharoplasty"}}))
	require.NoError(t, rc.Set(ctx, "unrelated", "x", 0))

	hit, err = c.Get(ctx, ServicesKey(0), &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Rhinoplasty", got[0].Name)

	c.Invalidate(ctx)
	assert.False(t, mr.Exists(ServicesKey(0)))
	assert.False(t, mr.Exists(ServicesKey(3)))
	assert.True(t, mr.Exists("unrelated"))
}

func TestCatalogCache_CorruptEntryIsMiss(t *testing.T) {
	rc, mr := newTestRedis(t)
	ctx := context.Background()
	c := NewCatalogCache(rc, time.Minute)

	require.NoError(t, mr.Set(CategoriesKey(), "{not json"))

	var got []string
	hit, err := c.Get(ctx, CategoriesKey(), &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists(CategoriesKey()))
}

func TestCatalogCache_NilIsAlwaysMiss(t *testing.T) {
	var c *CatalogCache
	var got []string
	hit, err := c.Get(context.Background(), CategoriesKey(), &got)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Set(context.Background(), CategoriesKey(), got))
}
