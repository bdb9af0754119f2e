package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is a value fired through an execution.System.
//
// Type identifies the event for dispatch. Cancelled is read by the dispatcher
// after every successful executor; once it reports true, executors later in
// the order are skipped.
type Event interface {
	Type() *Type
	Cancelled() bool
}

// Canceler is implemented by events whose handlers may veto further delivery.
type Canceler interface {
	Event
	Cancel()
}

// Base is embedded by events that can never be cancelled.
type Base struct{}

// Cancelled always returns false.
func (Base) Cancelled() bool {
	return false
}

// Cancellable is embedded by events that handlers may cancel.
// The zero value is not cancelled. It must not be copied after first use.
type Cancellable struct {
	cancelled atomic.Bool
}

// Cancel marks the event as cancelled.
func (c *Cancellable) Cancel() {
	c.cancelled.Store(true)
}

// CancelIf cancels the event when cond returns true.
func (c *Cancellable) CancelIf(cond func() bool) {
	if cond != nil && cond() {
		c.Cancel()
	}
}

// Cancelled reports whether the event has been cancelled.
func (c *Cancellable) Cancelled() bool {
	return c.cancelled.Load()
}

// Metadata contains standard information attached to a Message.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source identifies who fired the event.
	Source string
}

// NewMetadata returns metadata with a fresh ID and the current time.
func NewMetadata(source string) Metadata {
	return Metadata{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Source:    source,
	}
}
