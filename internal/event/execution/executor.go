package execution

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/dispatch"
)

// Kind distinguishes the executor variants.
type Kind int

const (
	// KindListener is a persistent executor.
	KindListener Kind = iota

	// KindTask is a single-shot executor.
	KindTask
)

// String returns the variant name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindListener:
		return "Listener"
	case KindTask:
		return "Task"
	default:
		return "Executor"
	}
}

// Action reacts to an event. A returned error or a panic becomes an
// *ExecutorFailure.
type Action func(ev event.Event) error

// CallbackAction is an Action that also receives its own executor, so it
// can detach itself.
type CallbackAction func(ev event.Event, self Executor) error

// Executor is a registered reaction to events of one type.
//
// An executor is created detached, attached to exactly one Container, and
// finally detached. Attaching twice or detaching an executor that was never
// attached panics with a *ViolationError. Once detached an executor is never
// invoked again.
type Executor interface {
	// ID returns the unique executor identifier.
	ID() string

	// Name returns a human-readable name for diagnostics.
	Name() string

	// Kind returns the executor variant.
	Kind() Kind

	// EventType returns the type the executor was registered for.
	EventType() *event.Type

	// Key returns the dispatch ordering key.
	Key() OrderingKey

	// Priority returns the ordering band.
	Priority() Priority

	// Container returns the owning container, or nil before attachment.
	Container() *Container

	// AttachTo records the owning container.
	AttachTo(c *Container)

	// IsAttachedTo reports whether c owns the executor.
	IsAttachedTo(c *Container) bool

	// IsDetached reports whether detachment has been requested.
	IsDetached() bool

	// Detach requests removal through the owning container.
	Detach()

	// Accept validates ev against the declared type and runs the action.
	Accept(ev event.Event) error

	core() *executor
}

// executor holds the state shared by Listener and Task.
type executor struct {
	id        string
	label     string
	kind      Kind
	eventType *event.Type
	key       OrderingKey
	action    Action
	self      Executor

	container atomic.Pointer[Container]
	detached  atomic.Bool
}

// init validates the arguments and fills in the executor in place.
func (e *executor) init(self Executor, kind Kind, t *event.Type, action Action, cfg executorConfig) {
	if t == nil {
		violate(RuleInvalidArgument, "%s created with nil event type", kind)
	}
	if action == nil {
		violate(RuleInvalidArgument, "%s for %s created with nil action", kind, t)
	}
	if !cfg.priority.Valid() {
		violate(RuleInvalidPriority, "%s for %s created with %s", kind, t, cfg.priority)
	}
	if t.IsAbstract() && !AbstractEvents() {
		violate(RuleAbstractType, "unable to create %s for abstract event type %s while abstract events are disabled", kind, t)
	}

	e.id = uuid.NewString()
	e.label = cfg.name
	e.kind = kind
	e.eventType = t
	e.key = NewOrderingKey(cfg.priority, nextSequence())
	e.action = action
	e.self = self
}

func (e *executor) core() *executor {
	return e
}

// ID returns the unique executor identifier.
func (e *executor) ID() string {
	return e.id
}

// Kind returns the executor variant.
func (e *executor) Kind() Kind {
	return e.kind
}

// EventType returns the type the executor was registered for.
func (e *executor) EventType() *event.Type {
	return e.eventType
}

// Key returns the dispatch ordering key.
func (e *executor) Key() OrderingKey {
	return e.key
}

// Priority returns the ordering band.
func (e *executor) Priority() Priority {
	return e.key.Priority()
}

// Container returns the owning container.
func (e *executor) Container() *Container {
	return e.container.Load()
}

// Name returns "<Kind> <container> #<id>", with the label when one was set.
func (e *executor) Name() string {
	owner := "<unattached>"
	if c := e.container.Load(); c != nil {
		owner = c.Name()
	}
	short := e.id
	if len(short) > 8 {
		short = short[:8]
	}
	if e.label != "" {
		return fmt.Sprintf("%s %s %q #%s", e.kind, owner, e.label, short)
	}
	return fmt.Sprintf("%s %s #%s", e.kind, owner, short)
}

// AttachTo records c as the owning container.
func (e *executor) AttachTo(c *Container) {
	if c == nil {
		violate(RuleInvalidArgument, "%s attached to nil container", e.Name())
	}
	if !e.container.CompareAndSwap(nil, c) {
		violate(RuleDoubleAttach, "reattaching or double attaching %s is not supported", e.Name())
	}
}

// IsAttachedTo reports whether c owns the executor.
func (e *executor) IsAttachedTo(c *Container) bool {
	return c != nil && e.container.Load() == c
}

// IsDetached reports whether detachment has been requested.
func (e *executor) IsDetached() bool {
	return e.detached.Load()
}

// Detach requests removal through the owning container.
func (e *executor) Detach() {
	c := e.container.Load()
	if c == nil {
		violate(RuleNotAttached, "%s is not attached to any container", e.Name())
	}
	c.Detach(e.self)
}

// markDetached flips the detached flag. It returns false if it was already set.
func (e *executor) markDetached() bool {
	return e.detached.CompareAndSwap(false, true)
}

// accept runs the action under a guard and converts failures.
func (e *executor) accept(ev event.Event) error {
	if ev == nil {
		return e.failure("<nil>", fmt.Errorf("%w: nil event", ErrEventTypeMismatch))
	}
	if !ev.Type().Is(e.eventType) {
		return e.failure(ev.Type().String(),
			fmt.Errorf("%w: %s cannot handle %s", ErrEventTypeMismatch, e.eventType, ev.Type()))
	}

	result := dispatch.Guard(func() error {
		return e.action(ev)
	})

	switch {
	case result.IsPanic():
		return e.failure(ev.Type().String(), &PanicError{Value: result.PanicValue, Stack: result.PanicStack})
	case result.IsError():
		return e.failure(ev.Type().String(), result.Error)
	}
	return nil
}

func (e *executor) failure(eventType string, cause error) *ExecutorFailure {
	return &ExecutorFailure{
		Executor:  e.Name(),
		EventType: eventType,
		Cause:     cause,
	}
}
