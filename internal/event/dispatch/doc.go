// Package dispatch provides guarded invocation of event handlers.
//
// Guard runs a handler function in the caller's goroutine, recovers from
// panics, captures the stack trace and measures the execution time. The
// execution package runs every executor action through Guard so a
// misbehaving handler can never unwind the dispatch loop.
//
// # Usage
//
//	result := dispatch.Guard(func() error {
//	    return handler(evt)
//	})
//	if !result.IsSuccess() {
//	    // result.Error or result.PanicValue describes the failure
//	}
//
// Stats accumulates results with atomic counters and can be shared by
// concurrent callers.
package dispatch
