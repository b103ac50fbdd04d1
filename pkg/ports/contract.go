package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	snapshot := func(id string) domain.SessionSnapshot {
		return domain.SessionSnapshot{
			ID:       id,
			ImageRef: "cat.png",
			Selection: &domain.EffectInstance{
				EffectID: domain.EffectPixelate,
				Params:   map[string]any{"pixel_size": 12.0, "dither": false},
			},
			State:     domain.StateIdle,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, snapshot(sessionID))
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, domain.ImageRef("cat.png"), loaded.ImageRef)
		require.NotNil(t, loaded.Selection)
		assert.Equal(t, domain.EffectPixelate, loaded.Selection.EffectID)
		assert.Equal(t, 12.0, loaded.Selection.Params["pixel_size"])
		assert.Equal(t, false, loaded.Selection.Params["dither"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, snapshot(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, snapshot(id1))
		_ = store.Save(ctx, snapshot(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
