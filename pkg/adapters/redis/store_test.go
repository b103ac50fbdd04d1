package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/retrofx/pkg/adapters/redis"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSessionStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	snap := domain.SessionSnapshot{ID: "session-ttl", ImageRef: "cat.png", State: domain.StateIdle}

	require.NoError(t, store.Save(ctx, snap))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, "session-ttl")

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// The index is pruned against wall time, not miniredis time.
	time.Sleep(1200 * time.Millisecond)

	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("editor:"))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, domain.SessionSnapshot{ID: "abc", State: domain.StateIdle}))

	assert.True(t, mr.Exists("editor:abc"))
	assert.False(t, mr.Exists(redis.DefaultPrefix+"abc"))

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, loaded.State)
}

func TestRedisStore_RejectsEmptyID(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	assert.Error(t, store.Save(context.Background(), domain.SessionSnapshot{}))
}
