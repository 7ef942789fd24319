package ipguard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCache(rdb, testConfig()), mr
}

func TestRedisCache_AutoBlockAtThreshold(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	for i := 0; i < 4; i++ {
		blocked, err := c.RecordFailure(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.False(t, blocked)
	}

	blocked, err := c.RecordFailure(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, blocked)

	got, err := c.IsBlocked(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, got)
}

func TestRedisCache_WindowExpiryResetsCounter(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	for i := 0; i < 4; i++ {
		_, err := c.RecordFailure(ctx, "198.51.100.3")
		require.NoError(t, err)
	}

	mr.FastForward(16 * time.Minute)

	blocked, err := c.RecordFailure(ctx, "198.51.100.3")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestRedisCache_BlockExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Block(ctx, "192.0.2.1", "manual", 30*time.Minute))

	got, err := c.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.True(t, got)

	mr.FastForward(31 * time.Minute)

	got, err = c.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.False(t, got)
}

func TestRedisCache_ListPrunesExpiredMembers(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Block(ctx, "192.0.2.1", "manual", time.Hour))
	require.NoError(t, c.Block(ctx, "192.0.2.2", "manual", 10*time.Minute))

	mr.FastForward(11 * time.Minute)

	list, err := c.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "192.0.2.1", list[0].IP)
	require.Equal(t, "manual", list[0].Reason)

	// The stale member was removed from the set as well.
	list, err = c.ListBlocked(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRedisCache_Unblock(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	require.NoError(t, c.Block(ctx, "192.0.2.1", "manual", time.Hour))
	require.NoError(t, c.Unblock(ctx, "192.0.2.1"))

	got, err := c.IsBlocked(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.False(t, got)

	require.ErrorIs(t, c.Unblock(ctx, "192.0.2.1"), ErrNotBlocked)
}

func TestRedisCache_UnblockResetsFailureCounter(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	for i := 0; i < 4; i++ {
		blocked, err := c.RecordFailure(ctx, "203.0.113.9")
		require.NoError(t, err)
		require.False(t, blocked)
	}

	require.NoError(t, c.Block(ctx, "203.0.113.9", "manual", time.Hour))
	require.NoError(t, c.Unblock(ctx, "203.0.113.9"))

	// The address starts over with a clean slate.
	blocked, err := c.RecordFailure(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestRedisCache_ManualBlockClearsFailureCounter(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	for i := 0; i < 4; i++ {
		_, err := c.RecordFailure(ctx, "203.0.113.10")
		require.NoError(t, err)
	}

	require.NoError(t, c.Block(ctx, "203.0.113.10", "manual", time.Minute))
	mr.FastForward(2 * time.Minute)

	// After the manual block lapses the old counter is gone.
	blocked, err := c.RecordFailure(ctx, "203.0.113.10")
	require.NoError(t, err)
	require.False(t, blocked)
}
