package execution

import (
	"fmt"
	"math"
	"strings"
)

// Priority selects the ordering band of an executor.
// Executors in a higher band are always called before executors in a lower
// band, whatever order they were created in.
type Priority int

// The order of these constants is the call order.
const (
	// PriorityHighest runs first and may veto every other band.
	PriorityHighest Priority = iota

	// PriorityHigh runs before the default band.
	PriorityHigh

	// PriorityDefault is used when no priority is given.
	PriorityDefault

	// PriorityLow runs after the default band.
	PriorityLow

	// PriorityLowest runs last and is skipped by any cancellation.
	PriorityLowest
)

const bandCount = 5

// bandWidth splits the key domain evenly. MaxUint64 is divisible by 5.
const bandWidth = math.MaxUint64 / bandCount

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "highest"
	case PriorityHigh:
		return "high"
	case PriorityDefault:
		return "default"
	case PriorityLow:
		return "low"
	case PriorityLowest:
		return "lowest"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined bands.
func (p Priority) Valid() bool {
	return p >= PriorityHighest && p <= PriorityLowest
}

// Base returns the first key of the band.
func (p Priority) Base() OrderingKey {
	return OrderingKey(uint64(p) * bandWidth)
}

// ParsePriority parses a priority name, ignoring case.
// An empty string yields PriorityDefault.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "highest":
		return PriorityHighest, nil
	case "high":
		return PriorityHigh, nil
	case "", "default", "normal":
		return PriorityDefault, nil
	case "low":
		return PriorityLow, nil
	case "lowest":
		return PriorityLowest, nil
	default:
		return PriorityDefault, fmt.Errorf("%w: %q", ErrUnknownPriority, s)
	}
}

// OrderingKey is the total dispatch order of executors: the band base plus
// the process-wide creation sequence. Lower keys are called first and no two
// executors share a key.
type OrderingKey uint64

// NewOrderingKey combines a band and a creation sequence number.
func NewOrderingKey(p Priority, seq uint64) OrderingKey {
	return p.Base() + OrderingKey(seq%bandWidth)
}

// Priority returns the band the key belongs to.
func (k OrderingKey) Priority() Priority {
	band := uint64(k) / bandWidth
	if band >= bandCount {
		band = bandCount - 1
	}
	return Priority(band)
}

// Sequence returns the creation sequence part of the key.
func (k OrderingKey) Sequence() uint64 {
	return uint64(k) - uint64(k.Priority().Base())
}
