// Package metrics records session counters and latencies on a dedicated
// prometheus registry. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "palaver"

type Metrics struct {
	registry *prometheus.Registry

	turns              *prometheus.CounterVec
	selectionFallbacks *prometheus.CounterVec
	capabilityCalls    *prometheus.CounterVec
	capabilityDuration *prometheus.HistogramVec
	handoffs           *prometheus.CounterVec
	reasoningDuration  *prometheus.HistogramVec
	reasoningFailures  *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns appended to the conversation log",
		}, []string{"speaker"}),
		selectionFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_fallbacks_total",
			Help:      "Turn selections that fell back to the default agent",
		}, []string{"reason"}),
		capabilityCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_calls_total",
			Help:      "Capability calls by outcome",
		}, []string{"capability", "status"}),
		capabilityDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capability_duration_seconds",
			Help:      "Duration of capability calls in seconds",
			Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"capability"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Handoff attempts by result",
		}, []string{"from", "to", "result"}),
		reasoningDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_duration_seconds",
			Help:      "Duration of reasoning calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"agent"}),
		reasoningFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_failures_total",
			Help:      "Failed reasoning attempts, retries included",
		}, []string{"agent"}),
	}

	m.registry.MustRegister(
		m.turns,
		m.selectionFallbacks,
		m.capabilityCalls,
		m.capabilityDuration,
		m.handoffs,
		m.reasoningDuration,
		m.reasoningFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTurn(speaker string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(speaker).Inc()
}

func (m *Metrics) ObserveSelectionFallback(reason string) {
	if m == nil {
		return
	}
	m.selectionFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCapability(capability string, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.capabilityCalls.WithLabelValues(capability, status).Inc()
	m.capabilityDuration.WithLabelValues(capability).Observe(d.Seconds())
}

func (m *Metrics) ObserveHandoff(from, to, result string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(from, to, result).Inc()
}

func (m *Metrics) ObserveReasoning(agent string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.reasoningDuration.WithLabelValues(agent).Observe(d.Seconds())
	if err != nil {
		m.reasoningFailures.WithLabelValues(agent).Inc()
	}
}
