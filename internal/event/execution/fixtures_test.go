package execution

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/eventsys/internal/event"
)

var (
	baseType   = event.NewAbstractType("exec.base")
	pingType   = event.NewType("exec.ping", baseType)
	pongType   = event.NewType("exec.pong", baseType)
	parentType = event.NewType("exec.parent")
	childType  = event.NewType("exec.child", parentType)
	otherType  = event.NewType("exec.other")
)

type pingEvent struct {
	event.Cancellable
	n int
}

func (*pingEvent) Type() *event.Type { return pingType }

type pongEvent struct {
	event.Cancellable
}

func (*pongEvent) Type() *event.Type { return pongType }

type childEvent struct {
	event.Base
}

func (*childEvent) Type() *event.Type { return childType }

// failureLog collects failures routed to an error sink.
type failureLog struct {
	mu       sync.Mutex
	failures []*ExecutorFailure
}

func (f *failureLog) sink(failure *ExecutorFailure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure)
}

func (f *failureLog) all() []*ExecutorFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ExecutorFailure(nil), f.failures...)
}

// recorder records action invocations in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) action(name string) Action {
	return func(event.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return nil
	}
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestSystem(t *testing.T) (*System, *Container, *failureLog) {
	t.Helper()
	log := &failureLog{}
	sys := NewSystem(WithErrorSink(log.sink))
	return sys, sys.NewContainer("test"), log
}

func enableAbstractEvents(t *testing.T) {
	t.Helper()
	SetAbstractEvents(true)
	t.Cleanup(func() {
		SetAbstractEvents(false)
	})
}

// requireViolation asserts that fn panics with a *ViolationError for rule.
func requireViolation(t *testing.T, rule Rule, fn func()) {
	t.Helper()

	var recovered any
	func() {
		defer func() {
			recovered = recover()
		}()
		fn()
	}()

	require.NotNil(t, recovered, "expected a %s violation", rule)
	err, ok := recovered.(error)
	require.True(t, ok, "panic value %v is not an error", recovered)

	var v *ViolationError
	require.True(t, errors.As(err, &v), "panic value %v is not a violation", err)
	require.Equal(t, rule, v.Rule)
	require.ErrorIs(t, err, ErrContractViolation)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
