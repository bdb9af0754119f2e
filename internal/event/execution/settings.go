package execution

import "sync/atomic"

// Process-wide state shared by every System.
var (
	abstractEvents atomic.Bool
	sequence       atomic.Uint64
)

// SetAbstractEvents enables or disables abstract event support for the whole
// process. When enabled, an executor registered for a type also reacts to
// events of every descendant type, and executors may be created for abstract
// types. It is disabled by default and is meant to be set once at startup.
func SetAbstractEvents(enabled bool) {
	abstractEvents.Store(enabled)
}

// AbstractEvents reports whether abstract event support is enabled.
func AbstractEvents() bool {
	return abstractEvents.Load()
}

// nextSequence returns the next executor creation number.
func nextSequence() uint64 {
	return sequence.Add(1)
}
