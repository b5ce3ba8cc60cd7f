package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onfa_registrations_total",
			Help: "Registration attempts by tier and outcome",
		},
		[]string{"tier", "result"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onfa_ticket_transitions_total",
			Help: "Accepted ticket status changes",
		},
		[]string{"from", "to"},
	)

	sideEffects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onfa_side_effects_total",
			Help: "Side effect dispatches by kind and outcome",
		},
		[]string{"kind", "result"},
	)

	sideEffectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onfa_side_effect_duration_seconds",
			Help:    "Time spent delivering a side effect",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"kind"},
	)

	inFlightEffects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onfa_side_effects_in_flight",
			Help: "Side effects currently running",
		},
	)

	sseClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onfa_sse_clients",
			Help: "Connected check-in stream clients",
		},
	)
)

func TrackRegistration(tier, result string) {
	registrations.WithLabelValues(tier, result).Inc()
}

func TrackTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

func TrackSideEffect(kind, result string, d time.Duration) {
	sideEffects.WithLabelValues(kind, result).Inc()
	sideEffectDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func EffectStarted()  { inFlightEffects.Inc() }
func EffectFinished() { inFlightEffects.Dec() }

func SSEClientConnected()    { sseClients.Inc() }
func SSEClientDisconnected() { sseClients.Dec() }
