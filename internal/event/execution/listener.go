package execution

import "github.com/dshills/eventsys/internal/event"

// Listener is an Executor that runs its action on every matching call until
// it is detached.
type Listener struct {
	executor
}

// NewListener creates a detached listener for events of type t.
func NewListener(t *event.Type, action Action, opts ...Option) *Listener {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Listener{}
	l.init(l, KindListener, t, action, cfg)
	return l
}

// NewListenerCallback creates a detached listener whose action also receives
// the listener itself.
func NewListenerCallback(t *event.Type, action CallbackAction, opts ...Option) *Listener {
	if action == nil {
		violate(RuleInvalidArgument, "listener for %s created with nil action", t)
	}

	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Listener{}
	l.init(l, KindListener, t, func(ev event.Event) error {
		return action(ev, l)
	}, cfg)
	return l
}

// Accept validates ev and runs the action.
func (l *Listener) Accept(ev event.Event) error {
	return l.accept(ev)
}
