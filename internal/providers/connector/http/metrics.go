package http

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess   = "success"
	outcomeRemote    = "remote_error"
	outcomeHTTP      = "http_error"
	outcomeTransport = "transport_error"
)

type callMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newCallMetrics(registerer prometheus.Registerer) (*callMetrics, error) {
	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jelapi_remote_calls_total",
			Help: "Remote control plane calls by function and outcome",
		},
		[]string{"function", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jelapi_remote_call_duration_seconds",
			Help:    "Remote control plane call latency by function",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180, 600},
		},
		[]string{"function"},
	)

	registeredCalls, err := register(registerer, calls)
	if err != nil {
		return nil, err
	}
	registeredDuration, err := register(registerer, duration)
	if err != nil {
		return nil, err
	}
	return &callMetrics{calls: registeredCalls, duration: registeredDuration}, nil
}

// register reuses a collector another gateway already registered on the same
// registry.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return collector, nil
}

func (m *callMetrics) observe(function string, outcome string, seconds float64) {
	m.calls.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(seconds)
}
