package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks events fired through the application.
type Metrics struct {
	fired     atomic.Uint64
	cancelled atomic.Uint64
	failures  atomic.Uint64
	reloads   atomic.Uint64

	fireTotalNs atomic.Int64
	fireMinNs   atomic.Int64
	fireMaxNs   atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
	}
	// Start min at max int64 so the first fire is smaller.
	m.fireMinNs.Store(1<<63 - 1)
	return m
}

// RecordFire records one Fire call.
func (m *Metrics) RecordFire(duration time.Duration, cancelled bool) {
	ns := duration.Nanoseconds()

	m.fired.Add(1)
	if cancelled {
		m.cancelled.Add(1)
	}
	m.fireTotalNs.Add(ns)

	for {
		old := m.fireMinNs.Load()
		if ns >= old || m.fireMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.fireMaxNs.Load()
		if ns <= old || m.fireMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordFailure records an executor failure.
func (m *Metrics) RecordFailure() {
	m.failures.Add(1)
}

// RecordReload records a plugin reload.
func (m *Metrics) RecordReload() {
	m.reloads.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	fired := m.fired.Load()

	var avg int64
	if fired > 0 {
		avg = m.fireTotalNs.Load() / int64(fired)
	}

	minNs := m.fireMinNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	return MetricsSnapshot{
		Uptime:    time.Since(m.startTime),
		Fired:     fired,
		Cancelled: m.cancelled.Load(),
		Failures:  m.failures.Load(),
		Reloads:   m.reloads.Load(),
		AvgFireNs: avg,
		MinFireNs: minNs,
		MaxFireNs: m.fireMaxNs.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime    time.Duration `json:"uptime"`
	Fired     uint64        `json:"fired"`
	Cancelled uint64        `json:"cancelled"`
	Failures  uint64        `json:"failures"`
	Reloads   uint64        `json:"reloads"`
	AvgFireNs int64         `json:"avg_fire_ns"`
	MinFireNs int64         `json:"min_fire_ns"`
	MaxFireNs int64         `json:"max_fire_ns"`
}
