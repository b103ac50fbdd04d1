package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/retrofx/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_ExclusiveUntilReleased(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "s1", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	unlock, err = locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_IndependentKeys(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	u1, err := locker.Lock(ctx, "a", time.Minute)
	require.NoError(t, err)
	u2, err := locker.Lock(ctx, "b", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, u1(ctx))
	assert.NoError(t, u2(ctx))
}

func TestLocker_StaleReleaseDoesNotStealLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "s1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "s1", time.Minute)
	require.NoError(t, err)

	// The expired holder's release must leave the new holder's key intact.
	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"lock:s1"))

	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"lock:s1"))
}
