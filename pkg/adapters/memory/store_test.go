package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/retrofx/pkg/adapters/memory"
	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	snap := domain.SessionSnapshot{
		ID: "s1",
		Selection: &domain.EffectInstance{
			EffectID: domain.EffectPixelate,
			Params:   map[string]any{"pixel_size": 10.0},
		},
	}
	require.NoError(t, store.Save(ctx, snap))

	snap.Selection.Params["pixel_size"] = 99.0
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, loaded.Selection.Params["pixel_size"])

	loaded.Selection.Params["pixel_size"] = 42.0
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Selection.Params["pixel_size"])
}
