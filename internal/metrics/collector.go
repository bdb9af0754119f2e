// Package metrics exposes dispatch statistics as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/eventsys/internal/event/execution"
)

// Namespace prefixes every metric name.
const Namespace = "eventsys"

// StatsSource provides dispatch statistics. *execution.System implements it.
type StatsSource interface {
	Stats() execution.Stats
}

// Collector reads a StatsSource on every scrape.
type Collector struct {
	source StatsSource

	calls       *prometheus.Desc
	cancelled   *prometheus.Desc
	removed     *prometheus.Desc
	invocations *prometheus.Desc
	duration    *prometheus.Desc
	executors   *prometheus.Desc
	pending     *prometheus.Desc
	types       *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source StatsSource) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, subsystem, name), help, labels, nil)
	}

	return &Collector{
		source:      source,
		calls:       desc("dispatch", "calls_total", "Total number of events dispatched."),
		cancelled:   desc("dispatch", "cancelled_total", "Total number of dispatches stopped by cancellation."),
		removed:     desc("dispatch", "removed_total", "Total number of detached executors removed from the index."),
		invocations: desc("executor", "invocations_total", "Total executor invocations by outcome.", "outcome"),
		duration:    desc("executor", "duration_seconds_total", "Cumulative time spent in executor actions."),
		executors:   desc("executor", "attached", "Attached executors not yet detached.", "kind"),
		pending:     desc("executor", "pending_removals", "Detached executors awaiting removal."),
		types:       desc("dispatch", "indexed_types", "Event types with at least one indexed executor."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.cancelled
	ch <- c.removed
	ch <- c.invocations
	ch <- c.duration
	ch <- c.executors
	ch <- c.pending
	ch <- c.types
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	inv := s.Invocations

	ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(s.Calls))
	ch <- prometheus.MustNewConstMetric(c.cancelled, prometheus.CounterValue, float64(s.Cancelled))
	ch <- prometheus.MustNewConstMetric(c.removed, prometheus.CounterValue, float64(s.Removed))

	ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue, float64(inv.Succeeded), "success")
	ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue, float64(inv.Failed), "error")
	ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue, float64(inv.Panicked), "panic")
	ch <- prometheus.MustNewConstMetric(c.duration, prometheus.CounterValue, inv.TotalDuration.Seconds())

	ch <- prometheus.MustNewConstMetric(c.executors, prometheus.GaugeValue, float64(s.Listeners), "listener")
	ch <- prometheus.MustNewConstMetric(c.executors, prometheus.GaugeValue, float64(s.Tasks), "task")
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.Pending))
	ch <- prometheus.MustNewConstMetric(c.types, prometheus.GaugeValue, float64(s.Types))
}

// NewRegistry returns a registry with the Go runtime and process collectors
// plus a Collector for source.
func NewRegistry(source StatsSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(source),
	)
	return reg
}
