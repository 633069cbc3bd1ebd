package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	lease, err := m.Acquire(ctx, "cmp_1")
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "cmp_1")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := m.Acquire(ctx, "cmp_2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	again, err := m.Acquire(ctx, "cmp_1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, time.Minute)
}

func TestRedisLock(t *testing.T) {
	ctx := context.Background()
	mr, l := newRedis(t)

	lease, err := l.Acquire(ctx, "cmp_1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("mailout:lock:cmp_1"))
	assert.Equal(t, time.Minute, mr.TTL("mailout:lock:cmp_1"))

	_, err = l.Acquire(ctx, "cmp_1")
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("mailout:lock:cmp_1"))

	again, err := l.Acquire(ctx, "cmp_1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	mr, l := newRedis(t)

	stale, err := l.Acquire(ctx, "cmp_1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	fresh, err := l.Acquire(ctx, "cmp_1")
	require.NoError(t, err)

	// The expired holder must not delete the new owner's key.
	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("mailout:lock:cmp_1"))

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("mailout:lock:cmp_1"))
}

func TestRedisLockUnavailable(t *testing.T) {
	mr, l := newRedis(t)
	mr.Close()

	_, err := l.Acquire(context.Background(), "cmp_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}
