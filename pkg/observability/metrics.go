package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/retrofx/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

// Resolution outcomes used as label values.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors fed by lifecycle hooks.
type Metrics struct {
	registry *prometheus.Registry

	Uploads            *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	Resolutions        *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	StateTransitions   *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	BreakerState       *prometheus.GaugeVec
}

// NewMetrics creates the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Uploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrofx_uploads_total",
				Help: "Image uploads by status",
			},
			[]string{"status"},
		),
		Submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrofx_submissions_total",
				Help: "Processing submissions by effect",
			},
			[]string{"effect"},
		),
		Resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrofx_resolutions_total",
				Help: "Resolved submissions by effect and outcome (applied, stale, failed)",
			},
			[]string{"effect", "outcome"},
		),
		ProcessingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrofx_processing_duration_seconds",
				Help:    "Time from submission to resolution in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"effect"},
		),
		StateTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrofx_state_transitions_total",
				Help: "Processing state transitions",
			},
			[]string{"from", "to"},
		),
		ActiveSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "retrofx_active_sessions",
				Help: "Number of live editing sessions",
			},
		),
		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "retrofx_circuit_breaker_state",
				Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"component"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnUpload: func(_ context.Context, e *domain.UploadEvent) {
			status := "ok"
			if e.Err != nil {
				status = string(domain.KindOf(e.Err))
			}
			m.Uploads.WithLabelValues(status).Inc()
		},
		OnSubmit: func(_ context.Context, e *domain.SubmitEvent) {
			m.Submissions.WithLabelValues(string(e.EffectID)).Inc()
		},
		OnResolve: func(_ context.Context, e *domain.ResolveEvent) {
			outcome := OutcomeApplied
			switch {
			case e.Stale:
				outcome = OutcomeStale
			case e.Err != nil:
				outcome = OutcomeFailed
			}
			m.Resolutions.WithLabelValues(string(e.EffectID), outcome).Inc()
			m.ProcessingDuration.WithLabelValues(string(e.EffectID)).Observe(e.Duration.Seconds())
		},
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			m.StateTransitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
	}
}

// ObserveBreaker records a circuit breaker transition.
func (m *Metrics) ObserveBreaker(component string, state gobreaker.State) {
	m.BreakerState.WithLabelValues(component).Set(breakerValue(state))
}

func breakerValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
