// Package metrics exposes engine activity as Prometheus collectors on a private registry.
// A nil *Engine is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cadence"

// Engine holds the collectors updated by the playback engine and its loaders.
type Engine struct {
	registry        *prometheus.Registry
	stateChanges    *prometheus.CounterVec
	rebuffers       prometheus.Counter
	errors          *prometheus.CounterVec
	loaderRetries   *prometheus.CounterVec
	discontinuities *prometheus.CounterVec
	buffered        prometheus.Gauge
	position        prometheus.Gauge
}

// New creates and registers the engine collectors.
func New() *Engine {
	registry := prometheus.NewRegistry()

	stateChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Number of playback state transitions by target state",
	}, []string{"state"})
	rebuffers := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rebuffers_total",
		Help:      "Number of times playback stalled while playing",
	})
	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_errors_total",
		Help:      "Number of fatal playback errors by type",
	}, []string{"type"})
	loaderRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "loader_retries_total",
		Help:      "Number of load retries by loader",
	}, []string{"loader"})
	discontinuities := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discontinuities_total",
		Help:      "Number of position discontinuities by reason",
	}, []string{"reason"})
	buffered := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffered_duration_seconds",
		Help:      "Media buffered ahead of the playback position",
	})
	position := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "position_seconds",
		Help:      "Playback position in the current period",
	})

	registry.MustRegister(
		stateChanges,
		rebuffers,
		errors,
		loaderRetries,
		discontinuities,
		buffered,
		position,
	)

	return &Engine{
		registry:        registry,
		stateChanges:    stateChanges,
		rebuffers:       rebuffers,
		errors:          errors,
		loaderRetries:   loaderRetries,
		discontinuities: discontinuities,
		buffered:        buffered,
		position:        position,
	}
}

// Registry returns the private registry, or nil.
func (e *Engine) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// StateChanged counts a transition to state.
func (e *Engine) StateChanged(state string) {
	if e == nil {
		return
	}
	e.stateChanges.WithLabelValues(state).Inc()
}

// Rebuffered counts a stall while playing.
func (e *Engine) Rebuffered() {
	if e == nil {
		return
	}
	e.rebuffers.Inc()
}

// PlaybackError counts a fatal error of kind.
func (e *Engine) PlaybackError(kind string) {
	if e == nil {
		return
	}
	e.errors.WithLabelValues(kind).Inc()
}

// LoaderRetry counts a retry scheduled by the named loader.
func (e *Engine) LoaderRetry(loader string) {
	if e == nil {
		return
	}
	e.loaderRetries.WithLabelValues(loader).Inc()
}

// Discontinuity counts a position discontinuity.
func (e *Engine) Discontinuity(reason string) {
	if e == nil {
		return
	}
	e.discontinuities.WithLabelValues(reason).Inc()
}

// SetBuffered sets the buffered-ahead gauge from microseconds.
func (e *Engine) SetBuffered(durationUs int64) {
	if e == nil {
		return
	}
	e.buffered.Set(float64(durationUs) / 1e6)
}

// SetPosition sets the position gauge from microseconds.
func (e *Engine) SetPosition(positionUs int64) {
	if e == nil {
		return
	}
	e.position.Set(float64(positionUs) / 1e6)
}

// Handler serves the registry in the Prometheus text format.
// updateGauges is called before each scrape.
func (e *Engine) Handler(updateGauges func()) http.Handler {
	if e == nil {
		return http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
