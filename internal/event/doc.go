// Package event provides the value types fired through the event system.
//
// Every event reports its Type, a tag registered by name with optional parent
// types. Parents form the hierarchy used when abstract events are enabled in
// the execution package: an executor registered for a parent type also reacts
// to events of every descendant type.
//
// # Declaring events
//
// Concrete events are ordinary structs embedding either Base (never
// cancelled) or Cancellable:
//
//	var (
//	    ChatType    = event.NewAbstractType("chat")
//	    MessageType = event.NewType("chat.message", ChatType)
//	)
//
//	type ChatMessage struct {
//	    event.Cancellable
//	    Text string
//	}
//
//	func (*ChatMessage) Type() *event.Type { return MessageType }
//
// Type must not depend on instance state for struct events: handler discovery
// calls it on a zero value to learn which type a method handles.
//
// Where no Go struct exists, Message carries a runtime-chosen Type and a
// field map.
//
// # Cancellation
//
// Handlers cancel an event by calling Cancel on it. The dispatcher checks the
// flag after each successful executor and stops delivery when it is set. The
// dispatcher itself never sets or clears the flag.
package event
