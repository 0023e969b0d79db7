// Package metrics exposes sorter activity as Prometheus collectors driven by lifecycle hooks.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/cardsort/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the sorter collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	cards            *prometheus.CounterVec
	identifyFailures prometheus.Counter
	feedFaults       *prometheus.CounterVec
	feedPhases       *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	running          prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardsort_cards_total",
				Help: "Cards dispensed, by bin",
			},
			[]string{"bin"},
		),
		identifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardsort_identify_failures_total",
			Help: "Cycles whose card could not be identified",
		}),
		feedFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardsort_feed_faults_total",
				Help: "Feed timeouts, by the phase that timed out",
			},
			[]string{"phase"},
		),
		feedPhases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardsort_feed_phase_total",
				Help: "Feed phases entered",
			},
			[]string{"phase"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardsort_cycle_duration_seconds",
			Help:    "Duration of a full card cycle",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 15, 20, 30, 60},
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cardsort_running",
			Help: "1 while the sorting worker is running",
		}),
	}
	m.registry.MustRegister(
		m.cards, m.identifyFailures, m.feedFaults, m.feedPhases, m.cycleDuration, m.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks records feed phases, cycle ends, identification failures and running changes.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFeedPhase: func(ctx context.Context, e *domain.PhaseEvent) {
			m.feedPhases.WithLabelValues(string(e.Phase)).Inc()
			if e.Phase.Terminal() && e.Phase != domain.PhaseDone {
				m.feedFaults.WithLabelValues(string(e.Phase)).Inc()
			}
		},
		OnCycleEnd: func(ctx context.Context, e *domain.CycleEvent) {
			m.cards.WithLabelValues(strconv.Itoa(e.Bin)).Inc()
			m.cycleDuration.Observe(e.Duration.Seconds())
		},
		OnIdentifyFailure: func(ctx context.Context, e *domain.CycleEvent) {
			m.identifyFailures.Inc()
		},
		OnRunningChange: func(ctx context.Context, e *domain.RunningEvent) {
			if e.Running {
				m.running.Set(1)
			} else {
				m.running.Set(0)
			}
		},
	}
}
