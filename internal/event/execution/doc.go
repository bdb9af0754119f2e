// Package execution dispatches events to prioritised executors.
//
// A System holds every attached executor, indexed by event type. Executors
// are attached through a Container, which groups them so they can be
// detached together:
//
//	sys := execution.NewSystem(execution.WithLogger(logger))
//	c := sys.NewContainer("editor")
//
//	c.Listener(SaveType, func(ev event.Event) error {
//	    return persist(ev.(*SaveEvent))
//	}, execution.WithPriority(execution.PriorityHigh))
//
//	cancelled := sys.Call(&SaveEvent{Path: "main.go"})
//
// # Ordering
//
// Each executor gets an OrderingKey when it is created: the base of its
// Priority band plus a process-wide sequence number. Call invokes executors
// in ascending key order, so bands run from PriorityHighest to
// PriorityLowest and executors within a band run in creation order.
//
// # Executors
//
// A Listener runs on every matching call until detached. A Task skips the
// number of matching calls given by WithDelay, runs once and detaches
// itself, including when its action fails.
//
// # Detachment
//
// Detach only marks the executor and queues it. The queue is drained at the
// start of the next Call. A marked executor is never invoked again, even
// during the call in which it was detached.
//
// # Failures and cancellation
//
// An action that returns an error or panics produces an *ExecutorFailure,
// which goes to the System's ErrorSink. Dispatch continues with the next
// executor. After each executor that succeeds, Call checks the event's
// Cancelled flag and stops if it is set.
//
// # Abstract events
//
// SetAbstractEvents(true) makes executors registered for a type also react
// to events of its descendant types, and allows executors for abstract
// types. The setting is process-wide.
//
// # Contract violations
//
// Programmer errors such as attaching an executor twice panic with a
// *ViolationError rather than returning an error.
package execution
