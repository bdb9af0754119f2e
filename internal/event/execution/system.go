package execution

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/dispatch"
)

// ErrorSink receives executor failures. It is called synchronously from Call
// and must not block for long.
type ErrorSink func(failure *ExecutorFailure)

// LogSink returns an ErrorSink that logs failures at error level.
func LogSink(logger zerolog.Logger) ErrorSink {
	return func(failure *ExecutorFailure) {
		entry := logger.Error().
			Err(failure.Cause).
			Str("executor", failure.Executor).
			Str("event_type", failure.EventType)

		var p *PanicError
		if errors.As(failure.Cause, &p) {
			entry = entry.Bytes("stack", p.Stack)
		}
		entry.Msg("executor failed")
	}
}

// System routes events to the executors attached through its containers.
//
// Executors are indexed by their declared event type and kept sorted by
// ordering key. Detachment only marks an executor and queues it; the queue is
// drained at the start of the next Call, so an executor may detach itself or
// others from inside an action.
type System struct {
	mu    sync.RWMutex
	index map[*event.Type][]Executor

	removeMu sync.Mutex
	removals *queue.Queue

	listeners atomic.Int64
	tasks     atomic.Int64

	calls       atomic.Uint64
	cancelled   atomic.Uint64
	removed     atomic.Uint64
	invocations dispatch.Stats

	logger    zerolog.Logger
	errorSink ErrorSink
}

// NewSystem creates an empty System.
func NewSystem(opts ...SystemOption) *System {
	cfg := defaultSystemConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.errorSink == nil {
		cfg.errorSink = LogSink(cfg.logger)
	}

	return &System{
		index:     make(map[*event.Type][]Executor),
		removals:  queue.New(),
		logger:    cfg.logger,
		errorSink: cfg.errorSink,
	}
}

// NewContainer creates a root container bound to the System.
func (s *System) NewContainer(name string) *Container {
	return NewContainer(s, WithContainerName(name))
}

// Call dispatches ev to every live executor registered for its type, in
// ascending ordering-key order. With abstract events enabled, executors
// registered for any ancestor type are merged in.
//
// Executor failures go to the error sink and do not stop the dispatch. If ev
// is cancelled after an executor returns, Call stops and reports true.
func (s *System) Call(ev event.Event) bool {
	if ev == nil {
		violate(RuleInvalidArgument, "call with nil event")
	}
	t := ev.Type()
	if t == nil {
		violate(RuleInvalidArgument, "call with event of nil type")
	}

	s.calls.Add(1)
	s.drain()

	for _, ex := range s.resolve(t) {
		if ex.IsDetached() {
			continue
		}

		start := time.Now()
		err := ex.Accept(ev)
		s.record(err, time.Since(start))

		if err != nil {
			s.fail(ex, t, err)
			continue
		}
		if ev.Cancelled() {
			s.cancelled.Add(1)
			s.logger.Debug().
				Str("event_type", t.Name()).
				Str("executor", ex.Name()).
				Msg("event cancelled")
			return true
		}
	}
	return false
}

// Executors returns the live executors Call would consider for t, in
// dispatch order.
func (s *System) Executors(t *event.Type) []Executor {
	candidates := s.resolve(t)
	live := candidates[:0]
	for _, ex := range candidates {
		if !ex.IsDetached() {
			live = append(live, ex)
		}
	}
	return live
}

// CountListeners returns the number of attached listeners not yet detached.
func (s *System) CountListeners() int {
	return int(s.listeners.Load())
}

// CountTasks returns the number of attached tasks not yet detached.
func (s *System) CountTasks() int {
	return int(s.tasks.Load())
}

// Pending returns the number of detached executors awaiting removal.
func (s *System) Pending() int {
	s.removeMu.Lock()
	defer s.removeMu.Unlock()
	return s.removals.Length()
}

// Logger returns the System's logger.
func (s *System) Logger() zerolog.Logger {
	return s.logger
}

// Stats is a point-in-time view of a System.
type Stats struct {
	Listeners   int                    `json:"listeners"`
	Tasks       int                    `json:"tasks"`
	Pending     int                    `json:"pending_removals"`
	Types       int                    `json:"indexed_types"`
	Calls       uint64                 `json:"calls"`
	Cancelled   uint64                 `json:"cancelled"`
	Removed     uint64                 `json:"removed"`
	Invocations dispatch.StatsSnapshot `json:"invocations"`
}

// Stats returns current counters.
func (s *System) Stats() Stats {
	s.mu.RLock()
	types := len(s.index)
	s.mu.RUnlock()

	return Stats{
		Listeners:   s.CountListeners(),
		Tasks:       s.CountTasks(),
		Pending:     s.Pending(),
		Types:       types,
		Calls:       s.calls.Load(),
		Cancelled:   s.cancelled.Load(),
		Removed:     s.removed.Load(),
		Invocations: s.invocations.Snapshot(),
	}
}

// attach inserts ex into the index and records c as its container. Both
// happen under the index lock so a concurrent Call never sees a registered
// executor without its container.
func (s *System) attach(ex Executor, c *Container) {
	if ex == nil {
		violate(RuleInvalidArgument, "attaching nil executor to %s", c.Name())
	}
	core := ex.core()

	s.mu.Lock()
	defer s.mu.Unlock()

	if core.Container() != nil || core.IsDetached() {
		violate(RuleDoubleAttach, "reattaching or double attaching %s is not supported", ex.Name())
	}

	t := ex.EventType()
	list := s.index[t]
	i, _ := slices.BinarySearchFunc(list, ex.Key(), func(e Executor, k OrderingKey) int {
		return cmp.Compare(e.Key(), k)
	})
	s.index[t] = slices.Insert(list, i, ex)

	core.AttachTo(c)
	s.counter(ex.Kind()).Add(1)

	s.logger.Debug().
		Str("executor", ex.Name()).
		Str("event_type", t.Name()).
		Str("priority", ex.Priority().String()).
		Uint64("sequence", ex.Key().Sequence()).
		Msg("executor attached")
}

// detach marks ex and queues it for removal. It returns false if ex was
// already detached.
func (s *System) detach(ex Executor) bool {
	if ex == nil {
		violate(RuleInvalidArgument, "detaching nil executor")
	}
	core := ex.core()

	c := core.Container()
	if c == nil {
		violate(RuleNotAttached, "%s is not attached to any container", ex.Name())
	}
	if c.system != s {
		violate(RuleForeignExecutor, "%s belongs to another system", ex.Name())
	}
	if !core.markDetached() {
		return false
	}

	s.removeMu.Lock()
	s.removals.Add(ex)
	s.removeMu.Unlock()

	s.counter(ex.Kind()).Add(-1)

	s.logger.Debug().
		Str("executor", ex.Name()).
		Msg("executor detached")
	return true
}

func (s *System) counter(k Kind) *atomic.Int64 {
	if k == KindTask {
		return &s.tasks
	}
	return &s.listeners
}

// drain physically removes every queued executor from the index.
func (s *System) drain() {
	s.removeMu.Lock()
	n := s.removals.Length()
	if n == 0 {
		s.removeMu.Unlock()
		return
	}
	pending := make([]Executor, 0, n)
	for s.removals.Length() > 0 {
		pending = append(pending, s.removals.Remove().(Executor))
	}
	s.removeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range pending {
		if s.remove(ex) {
			s.removed.Add(1)
		}
	}
}

// remove deletes ex from the index. Caller must hold s.mu.
func (s *System) remove(ex Executor) bool {
	t := ex.EventType()
	list := s.index[t]
	i, found := slices.BinarySearchFunc(list, ex.Key(), func(e Executor, k OrderingKey) int {
		return cmp.Compare(e.Key(), k)
	})
	if !found || list[i] != ex {
		return false
	}

	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(s.index, t)
	} else {
		s.index[t] = list
	}
	return true
}

// resolve returns a copy of the candidates for t in dispatch order.
func (s *System) resolve(t *event.Type) []Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.index[t])
	if !AbstractEvents() {
		return result
	}

	merged := false
	for _, ancestor := range t.Ancestors() {
		if list := s.index[ancestor]; len(list) > 0 {
			result = append(result, list...)
			merged = true
		}
	}
	if merged {
		slices.SortFunc(result, func(a, b Executor) int {
			return cmp.Compare(a.Key(), b.Key())
		})
	}
	return result
}

// snapshot returns every indexed executor.
func (s *System) snapshot() []Executor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Executor
	for _, list := range s.index {
		result = append(result, list...)
	}
	return result
}

func (s *System) record(err error, d time.Duration) {
	r := dispatch.Result{Success: err == nil, Error: err, Duration: d}
	if errors.Is(err, ErrHandlerPanic) {
		r.Error = nil
		r.Panicked = true
	}
	s.invocations.Record(r)
}

// fail routes err to the error sink. A panicking sink is logged and
// swallowed so the dispatch can continue.
func (s *System) fail(ex Executor, t *event.Type, err error) {
	var failure *ExecutorFailure
	if !errors.As(err, &failure) {
		failure = &ExecutorFailure{Executor: ex.Name(), EventType: t.Name(), Cause: err}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("executor", failure.Executor).
				Str("panic", fmt.Sprint(r)).
				Msg("error sink panicked")
		}
	}()
	s.errorSink(failure)
}
