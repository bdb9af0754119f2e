package execution

import (
	"sync"

	"github.com/dshills/eventsys/internal/event"
)

// Task is an Executor that skips a number of matching calls, runs its action
// once and then detaches itself.
type Task struct {
	executor

	mu    sync.Mutex
	delay int
	fired bool
}

// NewTask creates a detached task for events of type t.
// WithDelay sets how many matching calls are skipped first.
func NewTask(t *event.Type, action Action, opts ...Option) *Task {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.delay < 0 {
		violate(RuleNegativeDelay, "task for %s created with delay %d", t, cfg.delay)
	}

	task := &Task{delay: cfg.delay}
	task.init(task, KindTask, t, action, cfg)
	return task
}

// Delay returns the number of matching calls still to be skipped.
func (t *Task) Delay() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

// Fired reports whether the action has run.
func (t *Task) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Accept decrements the delay while it is positive. Once it reaches zero the
// action runs and the task schedules its own detachment, even if the action
// failed. Later calls do nothing.
func (t *Task) Accept(ev event.Event) error {
	if ev == nil || !ev.Type().Is(t.eventType) {
		// Reports the mismatch without consuming the delay.
		return t.accept(ev)
	}

	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return nil
	}
	if t.delay > 0 {
		t.delay--
		t.mu.Unlock()
		return nil
	}
	t.fired = true
	t.mu.Unlock()

	if c := t.Container(); c != nil {
		defer c.Detach(t)
	}
	return t.accept(ev)
}
