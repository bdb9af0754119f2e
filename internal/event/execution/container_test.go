package execution

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsys/internal/event"
)

func TestContainer_GeneratedNames(t *testing.T) {
	sys := NewSystem()

	root := NewContainer(sys)
	assert.True(t, strings.HasPrefix(root.Name(), "EventContainer #"))

	child := NewContainer(nil, WithParent(root))
	assert.True(t, strings.HasPrefix(child.Name(), "EventContainer #"))
	assert.True(t, strings.HasSuffix(child.Name(), " : "+root.Name()))
	assert.Same(t, sys, child.System())
	assert.Same(t, root, child.Parent())
	assert.Nil(t, root.Parent())
}

func TestContainer_Child(t *testing.T) {
	sys := NewSystem()
	root := sys.NewContainer("root")

	a := root.Child("a")
	b := root.Child("")

	assert.Equal(t, "a", a.Name())
	assert.True(t, strings.HasSuffix(b.Name(), " : root"))
	assert.Equal(t, []*Container{a, b}, root.Children())
	assert.Empty(t, a.Children())
}

func TestContainer_Violations(t *testing.T) {
	other := NewSystem().NewContainer("other")

	requireViolation(t, RuleInvalidArgument, func() { NewContainer(nil) })
	requireViolation(t, RuleSystemMismatch, func() { NewContainer(NewSystem(), WithParent(other)) })
}

func TestContainer_Contains(t *testing.T) {
	sys := NewSystem()
	root := sys.NewContainer("root")
	child := root.Child("child")
	grandchild := child.Child("grandchild")
	sibling := sys.NewContainer("sibling")

	l := grandchild.Listener(pingType, noop)

	assert.True(t, grandchild.Contains(l))
	assert.True(t, child.Contains(l))
	assert.True(t, root.Contains(l))
	assert.False(t, sibling.Contains(l))
	assert.False(t, root.Contains(NewListener(pingType, noop)))
}

func TestContainer_DetachAllIncludesDescendants(t *testing.T) {
	sys, _, _ := newTestSystem(t)
	rec := &recorder{}

	root := sys.NewContainer("root")
	child := root.Child("child")
	sibling := sys.NewContainer("sibling")

	root.Listener(pingType, rec.action("root"))
	child.Listener(pingType, rec.action("child"))
	child.Task(pongType, rec.action("child-task"))
	already := child.Listener(pingType, rec.action("already"))
	already.Detach()
	sibling.Listener(pingType, rec.action("sibling"))

	assert.Equal(t, 3, root.DetachAll())
	assert.Equal(t, 1, sys.CountListeners())
	assert.Equal(t, 0, sys.CountTasks())

	sys.Call(&pingEvent{})
	sys.Call(&pongEvent{})
	assert.Equal(t, []string{"sibling"}, rec.all())

	assert.Equal(t, 0, root.DetachAll())
}

func TestContainer_DetachAllChildOnly(t *testing.T) {
	sys, _, _ := newTestSystem(t)
	root := sys.NewContainer("root")
	child := root.Child("child")

	kept := root.Listener(pingType, noop)
	child.Listener(pingType, noop)

	assert.Equal(t, 1, child.DetachAll())
	assert.False(t, kept.IsDetached())
	assert.Equal(t, 1, sys.CountListeners())
}

func TestListen_Typed(t *testing.T) {
	sys, c, log := newTestSystem(t)

	var got int
	Listen(c, pingType, func(ev *pingEvent) error {
		got = ev.n
		return nil
	})

	sys.Call(&pingEvent{n: 7})
	assert.Equal(t, 7, got)
	assert.Empty(t, log.all())
}

func TestListen_TypedMismatch(t *testing.T) {
	sys, c, log := newTestSystem(t)

	Listen(c, pingType, func(*pongEvent) error { return nil })
	sys.Call(&pingEvent{})

	failures := log.all()
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrEventTypeMismatch)
}

func TestListenCallback_Typed(t *testing.T) {
	sys, c, _ := newTestSystem(t)

	runs := 0
	ListenCallback(c, pingType, func(ev *pingEvent, self Executor) error {
		runs++
		ev.Cancel()
		self.Detach()
		return nil
	})

	assert.True(t, sys.Call(&pingEvent{}))
	assert.False(t, sys.Call(&pingEvent{}))
	assert.Equal(t, 1, runs)
}

func TestSchedule_Typed(t *testing.T) {
	sys, c, _ := newTestSystem(t)

	var seen []int
	task := Schedule(c, pingType, func(ev *pingEvent) error {
		seen = append(seen, ev.n)
		return nil
	}, WithDelay(1))

	for i := range 4 {
		sys.Call(&pingEvent{n: i})
	}
	assert.Equal(t, []int{1}, seen)
	assert.True(t, task.Fired())
}

func TestTyped_NilAction(t *testing.T) {
	_, c, _ := newTestSystem(t)

	requireViolation(t, RuleInvalidArgument, func() {
		Listen[*pingEvent](c, pingType, nil)
	})
	requireViolation(t, RuleInvalidArgument, func() {
		Schedule[event.Event](c, pingType, nil)
	})
}
