package dispatch

import (
	"sync/atomic"
	"time"
)

// Stats accumulates guarded invocation results.
// Counters are updated atomically and may be read while being updated, so a
// snapshot is not guaranteed to be internally consistent.
type Stats struct {
	invoked     atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	totalTimeNs atomic.Int64
}

// Record adds a result to the statistics.
func (s *Stats) Record(r Result) {
	s.invoked.Add(1)
	s.totalTimeNs.Add(r.Duration.Nanoseconds())

	switch {
	case r.IsPanic():
		s.panicked.Add(1)
	case r.IsError():
		s.failed.Add(1)
	case r.IsSuccess():
		s.succeeded.Add(1)
	}
}

// Snapshot returns the current values.
func (s *Stats) Snapshot() StatsSnapshot {
	invoked := s.invoked.Load()
	totalNs := s.totalTimeNs.Load()

	var avgNs int64
	if invoked > 0 {
		avgNs = totalNs / int64(invoked)
	}

	return StatsSnapshot{
		Invoked:       invoked,
		Succeeded:     s.succeeded.Load(),
		Failed:        s.failed.Load(),
		Panicked:      s.panicked.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// StatsSnapshot contains a point-in-time copy of Stats.
type StatsSnapshot struct {
	// Invoked is the total number of guarded invocations.
	Invoked uint64 `json:"invoked"`

	// Succeeded is the number of invocations that returned nil.
	Succeeded uint64 `json:"succeeded"`

	// Failed is the number of invocations that returned an error.
	Failed uint64 `json:"failed"`

	// Panicked is the number of invocations that panicked.
	Panicked uint64 `json:"panicked"`

	// TotalDuration is the cumulative time spent in handlers.
	TotalDuration time.Duration `json:"total_duration_ns"`

	// AvgDuration is the average handler execution time.
	AvgDuration time.Duration `json:"avg_duration_ns"`
}
