package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMetrics(t *testing.T) {
	snapshot := NewMetrics().Snapshot()

	assert.Zero(t, snapshot.Fired)
	assert.Zero(t, snapshot.MinFireNs, "min sentinel must not leak")
}

func TestMetrics_RecordFire(t *testing.T) {
	m := NewMetrics()

	m.RecordFire(10*time.Millisecond, false)
	m.RecordFire(20*time.Millisecond, true)
	m.RecordFire(30*time.Millisecond, false)

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(3), snapshot.Fired)
	assert.Equal(t, uint64(1), snapshot.Cancelled)
	assert.Equal(t, int64(10*time.Millisecond), snapshot.MinFireNs)
	assert.Equal(t, int64(30*time.Millisecond), snapshot.MaxFireNs)
	assert.Equal(t, int64(20*time.Millisecond), snapshot.AvgFireNs)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordFailure()
	m.RecordFailure()
	m.RecordReload()

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(2), snapshot.Failures)
	assert.Equal(t, uint64(1), snapshot.Reloads)
}
