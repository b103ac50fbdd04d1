package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/aretw0/retrofx/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_FeedCollectors(t *testing.T) {
	m := observability.NewMetrics()
	h := m.Hooks()
	ctx := context.Background()

	h.OnUpload(ctx, &domain.UploadEvent{ImageRef: "cat.png"})
	h.OnUpload(ctx, &domain.UploadEvent{Err: domain.UploadFailure("upload", errors.New("down"))})
	h.OnSubmit(ctx, &domain.SubmitEvent{Token: 1, EffectID: domain.EffectPixelate})
	h.OnSubmit(ctx, &domain.SubmitEvent{Token: 2, EffectID: domain.EffectPixelate})
	h.OnResolve(ctx, &domain.ResolveEvent{Token: 2, EffectID: domain.EffectPixelate, Duration: 200 * time.Millisecond})
	h.OnResolve(ctx, &domain.ResolveEvent{Token: 1, EffectID: domain.EffectPixelate, Stale: true})
	h.OnStateChange(ctx, &domain.StateEvent{From: domain.StateIdle, To: domain.StateInFlight})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("upload")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("pixelate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("pixelate", observability.OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("pixelate", observability.OutcomeStale)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateTransitions.WithLabelValues("idle", "in_flight")))
}

func TestObserveBreaker(t *testing.T) {
	m := observability.NewMetrics()
	m.ObserveBreaker("processing", gobreaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("processing")))
	m.ObserveBreaker("processing", gobreaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("processing")))
}

func TestHandler_Exposes(t *testing.T) {
	m := observability.NewMetrics()
	m.ActiveSessions.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "retrofx_active_sessions 3")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewMetrics_Independent(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()
	a.ActiveSessions.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ActiveSessions))
}
