// Package metrics exposes Prometheus collectors for the evaluation service.
package metrics

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	evaluations      *prometheus.CounterVec
	invalidResponses prometheus.Counter
	providerErrors   prometheus.Counter
	providerLatency  *prometheus.HistogramVec
	persistFailures  *prometheus.CounterVec
	observers        prometheus.Gauge
	droppedEvents    prometheus.Counter
}

// Option configures Metrics.
type Option func(*options)

type options struct {
	namespace string
}

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// New registers collectors on a private registry.
func New(opts ...Option) *Metrics {
	o := options{namespace: "quizeval"}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Metrics{
		namespace: o.namespace,
		registry:  prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "evaluations_total",
			Help:      "Scored evaluations by domain and outcome.",
		}, []string{"domain", "outcome"}),
		invalidResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "invalid_responses_total",
			Help:      "Provider replies rejected by the validator.",
		}),
		providerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "provider_errors_total",
			Help:      "Answer provider calls that failed.",
		}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "provider_latency_ms",
			Help:      "Answer provider latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 200, 350, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "persist_failures_total",
			Help:      "Evaluation records that could not be stored.",
		}, []string{"domain"}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "observers",
			Help:      "Currently connected live observers.",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "dropped_events_total",
			Help:      "Live events dropped because an observer buffer was full.",
		}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.invalidResponses,
		m.providerErrors,
		m.providerLatency,
		m.persistFailures,
		m.observers,
		m.droppedEvents,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackPresence exports the number of observers marked live in a shared
// store, read at scrape time. A failed read is reported as NaN.
func (m *Metrics) TrackPresence(count func(ctx context.Context) (int, error)) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "observers_present",
		Help:      "Observers marked live in the shared presence store.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := count(ctx)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}))
}

func (m *Metrics) RecordEvaluation(domain string, correct bool) {
	if m == nil {
		return
	}
	outcome := "incorrect"
	if correct {
		outcome = "correct"
	}
	m.evaluations.WithLabelValues(domain, outcome).Inc()
}

func (m *Metrics) RecordInvalidResponse() {
	if m == nil {
		return
	}
	m.invalidResponses.Inc()
}

func (m *Metrics) RecordProviderError() {
	if m == nil {
		return
	}
	m.providerErrors.Inc()
}

func (m *Metrics) ObserveProviderLatency(provider string, ms int64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider).Observe(float64(ms))
}

func (m *Metrics) RecordPersistFailure(domain string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(domain).Inc()
}

func (m *Metrics) SetObservers(n int) {
	if m == nil {
		return
	}
	m.observers.Set(float64(n))
}

func (m *Metrics) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}
