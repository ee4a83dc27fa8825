// Package metrics instruments the authorization pipeline with Prometheus
// counters and histograms. The instrumentation points are pipeline
// steps (C2-C9), not RPC methods, since this core defines no transport.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus instruments tracking pipeline behavior.
type Collector struct {
	registry *prometheus.Registry

	Authorizations *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	Rejections     *prometheus.CounterVec
}

// NewCollector builds a Collector registered against a dedicated
// registry (never the global default, to avoid collisions when this
// module is embedded in a larger process).
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwn_core",
			Name:      "authorizations_total",
			Help:      "Authorization pipeline outcomes by interface/method/result.",
		}, []string{"interface", "method", "result"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dwn_core",
			Name:      "pipeline_step_duration_seconds",
			Help:      "Latency of individual pipeline steps (C2-C9).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dwn_core",
			Name:      "rejections_total",
			Help:      "Authorization rejections by error code.",
		}, []string{"code"}),
	}

	registry.MustRegister(c.Authorizations, c.StepDuration, c.Rejections)

	return c
}

// Registry returns the Prometheus registry backing this collector, for
// wiring into an HTTP /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveStep records how long a named pipeline step took.
func (c *Collector) ObserveStep(step string, start time.Time) {
	c.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// RecordOutcome increments the authorization/rejection counters for one
// completed pipeline invocation. code is empty on success.
func (c *Collector) RecordOutcome(iface, method, code string) {
	result := "allowed"
	if code != "" {
		result = "denied"
	}

	c.Authorizations.WithLabelValues(iface, method, result).Inc()

	if code != "" {
		c.Rejections.WithLabelValues(code).Inc()
	}
}
