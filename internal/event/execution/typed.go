package execution

import (
	"fmt"

	"github.com/dshills/eventsys/internal/event"
)

// Listen attaches a listener whose action receives the event as T.
// An event that is not a T fails with ErrEventTypeMismatch.
func Listen[T event.Event](c *Container, t *event.Type, fn func(T) error, opts ...Option) *Listener {
	if fn == nil {
		violate(RuleInvalidArgument, "listener for %s created with nil action", t)
	}
	return c.Listener(t, typed(fn), opts...)
}

// ListenCallback is Listen with access to the listener itself.
func ListenCallback[T event.Event](c *Container, t *event.Type, fn func(T, Executor) error, opts ...Option) *Listener {
	if fn == nil {
		violate(RuleInvalidArgument, "listener for %s created with nil action", t)
	}
	return c.ListenerCallback(t, func(ev event.Event, self Executor) error {
		e, ok := ev.(T)
		if !ok {
			return mismatch[T](ev)
		}
		return fn(e, self)
	}, opts...)
}

// Schedule attaches a task whose action receives the event as T.
func Schedule[T event.Event](c *Container, t *event.Type, fn func(T) error, opts ...Option) *Task {
	if fn == nil {
		violate(RuleInvalidArgument, "task for %s created with nil action", t)
	}
	return c.Task(t, typed(fn), opts...)
}

func typed[T event.Event](fn func(T) error) Action {
	return func(ev event.Event) error {
		e, ok := ev.(T)
		if !ok {
			return mismatch[T](ev)
		}
		return fn(e)
	}
}

func mismatch[T event.Event](ev event.Event) error {
	var zero T
	return fmt.Errorf("%w: want %T, got %T", ErrEventTypeMismatch, zero, ev)
}
