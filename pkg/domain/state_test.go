package domain_test

import (
	"testing"
	"time"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.ProcessingState
		want     bool
	}{
		{domain.StateIdle, domain.StateInFlight, true},
		{domain.StateInFlight, domain.StateIdle, true},
		{domain.StateInFlight, domain.StateError, true},
		{domain.StateError, domain.StateIdle, true},
		{domain.StateIdle, domain.StateError, false},
		{domain.StateError, domain.StateInFlight, false},
		{domain.StateInFlight, domain.StateInFlight, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, domain.CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionLocked_ClearsLastError(t *testing.T) {
	s := domain.NewSession("s1", time.Now())
	s.Lock()
	defer s.Unlock()

	require.NoError(t, s.TransitionLocked(domain.StateInFlight))
	require.NoError(t, s.TransitionLocked(domain.StateError))
	s.LastError = "boom"

	assert.Error(t, s.TransitionLocked(domain.StateInFlight))
	require.NoError(t, s.TransitionLocked(domain.StateIdle))
	assert.Empty(t, s.LastError)
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := domain.NewSession("s1", time.Now())
	s.ImageRef = "cat.png"
	s.Selection = &domain.EffectInstance{
		EffectID: domain.EffectPixelate,
		Params:   map[string]any{"pixel_size": 10.0},
	}

	snap := s.Snapshot()
	snap.Selection.Params["pixel_size"] = 40.0

	assert.Equal(t, 10.0, s.Selection.Params["pixel_size"])
	assert.Equal(t, domain.ImageRef("cat.png"), snap.ImageRef)
	assert.Equal(t, domain.StateIdle, snap.State)
}

func TestNextStates_MatchCanTransition(t *testing.T) {
	for _, from := range domain.States() {
		next := domain.NextStates(from)
		for _, to := range domain.States() {
			if from == to {
				continue
			}
			assert.Equal(t, domain.CanTransition(from, to), contains(next, to), "%s -> %s", from, to)
		}
	}

	next := domain.NextStates(domain.StateIdle)
	next[0] = domain.StateError
	assert.Equal(t, []domain.ProcessingState{domain.StateInFlight}, domain.NextStates(domain.StateIdle))
}

func contains(states []domain.ProcessingState, s domain.ProcessingState) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}
