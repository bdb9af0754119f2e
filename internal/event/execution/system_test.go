package execution

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsys/internal/event"
)

func TestSystem_CallOrdersByPriorityThenCreation(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	c.Listener(pingType, rec.action("low-1"), WithPriority(PriorityLow))
	c.Listener(pingType, rec.action("highest"), WithPriority(PriorityHighest))
	c.Listener(pingType, rec.action("default-1"))
	c.Listener(pingType, rec.action("low-2"), WithPriority(PriorityLow))
	c.Listener(pingType, rec.action("lowest"), WithPriority(PriorityLowest))
	c.Listener(pingType, rec.action("default-2"))
	c.Listener(pingType, rec.action("high"), WithPriority(PriorityHigh))

	assert.False(t, sys.Call(&pingEvent{}))
	assert.Equal(t, []string{"highest", "high", "default-1", "default-2", "low-1", "low-2", "lowest"}, rec.all())
}

func TestSystem_RandomOrderRoundTrip(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}
	rng := rand.New(rand.NewPCG(1, 2))

	type created struct {
		name     string
		priority Priority
		index    int
	}
	var all []created
	for i := range 50 {
		p := Priority(rng.IntN(bandCount))
		name := fmt.Sprintf("l%02d", i)
		c.Listener(pingType, rec.action(name), WithPriority(p), WithName(name))
		all = append(all, created{name, p, i})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].priority < all[j].priority
	})
	want := make([]string, len(all))
	for i, x := range all {
		want[i] = x.name
	}

	sys.Call(&pingEvent{})
	assert.Equal(t, want, rec.all())

	gotOrder := make([]string, 0, len(want))
	for _, ex := range sys.Executors(pingType) {
		gotOrder = append(gotOrder, ex.(*Listener).label)
	}
	assert.Equal(t, want, gotOrder)
}

func TestSystem_OnlyMatchingTypeIsCalled(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	c.Listener(pingType, rec.action("ping"))
	c.Listener(pongType, rec.action("pong"))

	sys.Call(&pongEvent{})
	assert.Equal(t, []string{"pong"}, rec.all())
}

func TestSystem_CallWithoutExecutors(t *testing.T) {
	sys, _, log := newTestSystem(t)
	assert.False(t, sys.Call(&pingEvent{}))
	assert.Empty(t, log.all())
}

func TestSystem_Counters(t *testing.T) {
	sys, c, _ := newTestSystem(t)

	l := c.Listener(pingType, noop)
	task := c.Task(pingType, noop, WithDelay(5))
	c.Listener(pongType, noop)

	assert.Equal(t, 2, sys.CountListeners())
	assert.Equal(t, 1, sys.CountTasks())

	l.Detach()
	task.Detach()
	assert.Equal(t, 1, sys.CountListeners())
	assert.Equal(t, 0, sys.CountTasks())
	assert.Equal(t, 2, sys.Pending())

	sys.Call(&pongEvent{})
	assert.Equal(t, 0, sys.Pending())

	stats := sys.Stats()
	assert.Equal(t, uint64(2), stats.Removed)
	assert.Equal(t, uint64(1), stats.Calls)
	assert.Equal(t, 1, stats.Types)
}

func TestSystem_DetachIsIdempotent(t *testing.T) {
	sys, c, _ := newTestSystem(t)

	l := c.Listener(pingType, noop)
	l.Detach()
	l.Detach()
	c.Detach(l)

	assert.Equal(t, 0, sys.CountListeners())
	assert.Equal(t, 1, sys.Pending())
	assert.True(t, l.IsDetached())
}

func TestSystem_CancelShortCircuits(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	c.Listener(pingType, func(ev event.Event) error {
		ev.(event.Canceler).Cancel()
		return nil
	}, WithPriority(PriorityHighest))
	c.Listener(pingType, rec.action("l2"))

	ev := &pingEvent{}
	assert.True(t, sys.Call(ev))
	assert.True(t, ev.Cancelled())
	assert.Empty(t, rec.all())
	assert.Equal(t, uint64(1), sys.Stats().Cancelled)
}

func TestSystem_AlreadyCancelledEventStopsAfterFirst(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	c.Listener(pingType, rec.action("first"))
	c.Listener(pingType, rec.action("second"))

	ev := &pingEvent{}
	ev.Cancel()
	assert.True(t, sys.Call(ev))
	assert.Equal(t, []string{"first"}, rec.all())
}

func TestSystem_FailuresGoToSink(t *testing.T) {
	sys, c, log := newTestSystem(t)
	rec := &recorder{}
	cause := errors.New("broken")

	failing := c.Listener(pingType, func(event.Event) error { return cause }, WithPriority(PriorityHigh))
	c.Listener(pingType, func(event.Event) error { panic("bad") }, WithPriority(PriorityHigh))
	c.Listener(pingType, rec.action("after"))

	assert.False(t, sys.Call(&pingEvent{}))
	assert.Equal(t, []string{"after"}, rec.all())

	failures := log.all()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], cause)
	assert.Equal(t, failing.Name(), failures[0].Executor)
	assert.ErrorIs(t, failures[1], ErrHandlerPanic)

	inv := sys.Stats().Invocations
	assert.Equal(t, uint64(3), inv.Invoked)
	assert.Equal(t, uint64(1), inv.Failed)
	assert.Equal(t, uint64(1), inv.Panicked)
	assert.Equal(t, uint64(1), inv.Succeeded)
}

func TestSystem_CancelIgnoredOnFailure(t *testing.T) {
	sys, c, log := newTestSystem(t)
	rec := &recorder{}

	c.Listener(pingType, func(ev event.Event) error {
		ev.(event.Canceler).Cancel()
		return errors.New("cancelled then failed")
	}, WithPriority(PriorityHighest))
	c.Listener(pingType, rec.action("next"))
	c.Listener(pingType, rec.action("last"))

	assert.True(t, sys.Call(&pingEvent{}))
	assert.Equal(t, []string{"next"}, rec.all())
	assert.Len(t, log.all(), 1)
}

func TestSystem_SinkPanicIsSwallowed(t *testing.T) {
	sys := NewSystem(WithErrorSink(func(*ExecutorFailure) { panic("sink") }))
	c := sys.NewContainer("test")
	rec := &recorder{}

	c.Listener(pingType, func(event.Event) error { return errors.New("x") })
	c.Listener(pingType, rec.action("after"))

	assert.NotPanics(t, func() { sys.Call(&pingEvent{}) })
	assert.Equal(t, []string{"after"}, rec.all())
}

func TestSystem_DefaultSinkLogs(t *testing.T) {
	var buf syncBuffer
	sys := NewSystem(WithLogger(zerolog.New(&buf)))
	c := sys.NewContainer("logged")

	c.Listener(pingType, func(event.Event) error { return errors.New("nope") })
	sys.Call(&pingEvent{})

	out := buf.String()
	assert.Contains(t, out, `"message":"executor failed"`)
	assert.Contains(t, out, `"error":"nope"`)
	assert.Contains(t, out, `"event_type":"exec.ping"`)
}

func TestSystem_AttachLogsSequence(t *testing.T) {
	var buf syncBuffer
	sys := NewSystem(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

	l := sys.NewContainer("logged").Listener(pingType, noop, WithPriority(PriorityLow))

	out := buf.String()
	assert.Contains(t, out, `"message":"executor attached"`)
	assert.Contains(t, out, `"priority":"low"`)
	assert.Contains(t, out, fmt.Sprintf(`"sequence":%d`, l.Key().Sequence()))
}

func TestSystem_SelfDetachIsDeferred(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}
	runs := 0

	c.ListenerCallback(pingType, func(_ event.Event, self Executor) error {
		runs++
		self.Detach()
		return nil
	}, WithPriority(PriorityHigh))
	c.Listener(pingType, rec.action("after"))

	sys.Call(&pingEvent{})
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, sys.CountListeners())
	assert.Equal(t, 1, sys.Pending())

	sys.Call(&pingEvent{})
	assert.Equal(t, 1, runs)
	assert.Equal(t, []string{"after", "after"}, rec.all())
	assert.Equal(t, 0, sys.Pending())
}

func TestSystem_DetachLaterExecutorMidCall(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	var victim *Listener
	c.Listener(pingType, func(event.Event) error {
		victim.Detach()
		return nil
	}, WithPriority(PriorityHighest))
	victim = c.Listener(pingType, rec.action("victim"))
	c.Listener(pingType, rec.action("survivor"), WithPriority(PriorityLowest))

	sys.Call(&pingEvent{})
	assert.Equal(t, []string{"survivor"}, rec.all())
}

func TestSystem_TaskFiresOnceAfterDelay(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	task := c.Task(pingType, rec.action("task"), WithDelay(2))

	sys.Call(&pingEvent{})
	sys.Call(&pingEvent{})
	assert.Empty(t, rec.all())
	assert.Equal(t, 0, task.Delay())
	assert.Equal(t, 1, sys.CountTasks())

	sys.Call(&pingEvent{})
	assert.Equal(t, []string{"task"}, rec.all())
	assert.True(t, task.Fired())
	assert.True(t, task.IsDetached())
	assert.Equal(t, 0, sys.CountTasks())

	sys.Call(&pingEvent{})
	assert.Equal(t, []string{"task"}, rec.all())
}

func TestSystem_TaskDetachesOnFailure(t *testing.T) {
	sys, c, log := newTestSystem(t)

	task := c.Task(pingType, func(event.Event) error { return errors.New("once") })
	sys.Call(&pingEvent{})
	sys.Call(&pingEvent{})

	assert.True(t, task.IsDetached())
	assert.Len(t, log.all(), 1)
}

func TestSystem_ExactTypeOnlyWhenAbstractDisabled(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	c.Listener(parentType, rec.action("parent"))
	c.Listener(childType, rec.action("child"))

	sys.Call(&childEvent{})
	assert.Equal(t, []string{"child"}, rec.all())
}

func TestSystem_AbstractDispatch(t *testing.T) {
	enableAbstractEvents(t)
	sys, c, _ := newTestSystem(t)
	rec := &recorder{}

	c.Listener(pingType, rec.action("ping"))
	c.Listener(baseType, rec.action("base-highest"), WithPriority(PriorityHighest))
	c.Listener(baseType, rec.action("base"))
	c.Listener(childType, rec.action("child"))
	c.Listener(parentType, rec.action("parent"))

	sys.Call(&pingEvent{})
	assert.Equal(t, []string{"base-highest", "ping", "base"}, rec.all())

	rec.calls = nil
	sys.Call(&pongEvent{})
	assert.Equal(t, []string{"base-highest", "base"}, rec.all())

	rec.calls = nil
	sys.Call(&childEvent{})
	assert.Equal(t, []string{"child", "parent"}, rec.all())
}

func TestSystem_Executors(t *testing.T) {
	sys, c, _ := newTestSystem(t)

	b := c.Listener(pingType, noop)
	a := c.Listener(pingType, noop, WithPriority(PriorityHigh))
	d := c.Listener(pingType, noop)
	d.Detach()

	got := sys.Executors(pingType)
	require.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
}

func TestSystem_Violations(t *testing.T) {
	sys, c, _ := newTestSystem(t)
	other := NewSystem().NewContainer("other")
	foreign := other.Listener(pingType, noop)

	requireViolation(t, RuleInvalidArgument, func() { sys.Call(nil) })
	requireViolation(t, RuleInvalidArgument, func() { c.Attach(nil) })
	requireViolation(t, RuleForeignExecutor, func() { c.Detach(foreign) })
	requireViolation(t, RuleNotAttached, func() { c.Detach(NewListener(pingType, noop)) })
}

func TestSystem_ConcurrentCallAndDetach(t *testing.T) {
	sys, c, log := newTestSystem(t)

	const workers = 8
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 100 {
				l := c.Listener(pingType, noop, WithPriority(Priority(i%bandCount)))
				task := c.Task(pingType, noop, WithDelay(w%3))
				sys.Call(&pingEvent{n: i})
				l.Detach()
				task.Detach()
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				sys.Call(&pongEvent{})
				sys.Call(&pingEvent{})
			}
		}()
	}
	wg.Wait()

	sys.Call(&pingEvent{})
	assert.Equal(t, 0, sys.CountListeners())
	assert.Equal(t, 0, sys.CountTasks())
	assert.Equal(t, 0, sys.Pending())
	assert.Empty(t, sys.Executors(pingType))
	assert.Empty(t, log.all())
}

func BenchmarkSystemCall(b *testing.B) {
	sys := NewSystem()
	c := sys.NewContainer("bench")
	for i := range 20 {
		c.Listener(pingType, noop, WithPriority(Priority(i%bandCount)))
	}
	ev := &pingEvent{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sys.Call(ev)
	}
}
