package execution

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/eventsys/internal/event"
)

var containerCount atomic.Uint64

// Container groups executors attached to one System so they can be detached
// together. Containers form a tree: DetachAll on a container also detaches
// the executors of every descendant.
//
// A container does not own its executors. The System's index is the only
// store of live executors; the container is recorded on each executor and
// used for membership queries.
type Container struct {
	name   string
	system *System
	parent *Container

	mu       sync.RWMutex
	children []*Container
}

// NewContainer creates a container bound to system.
//
// With WithParent the container becomes a child of the parent, and system may
// be nil to inherit the parent's System. A parent bound to a different System
// panics with a *ViolationError.
func NewContainer(system *System, opts ...ContainerOption) *Container {
	var cfg containerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if system == nil {
		if cfg.parent == nil {
			violate(RuleInvalidArgument, "container created without a system")
		}
		system = cfg.parent.system
	}
	if cfg.parent != nil && cfg.parent.system != system {
		violate(RuleSystemMismatch, "container %q cannot be a child of %q from another system", cfg.name, cfg.parent.name)
	}

	name := cfg.name
	if name == "" {
		name = fmt.Sprintf("EventContainer #%d", containerCount.Add(1)-1)
		if cfg.parent != nil {
			name += " : " + cfg.parent.name
		}
	}

	c := &Container{
		name:   name,
		system: system,
		parent: cfg.parent,
	}
	if cfg.parent != nil {
		cfg.parent.addChild(c)
	}
	return c
}

// Child creates a child container sharing this container's System.
// An empty name generates one.
func (c *Container) Child(name string) *Container {
	return NewContainer(c.system, WithParent(c), WithContainerName(name))
}

func (c *Container) addChild(child *Container) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, child)
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.name
}

// System returns the System the container belongs to.
func (c *Container) System() *System {
	return c.system
}

// Parent returns the parent container, or nil for a root.
func (c *Container) Parent() *Container {
	return c.parent
}

// Children returns a copy of the direct children.
func (c *Container) Children() []*Container {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Container, len(c.children))
	copy(result, c.children)
	return result
}

// Contains reports whether ex is attached to this container or to any of
// its descendants.
func (c *Container) Contains(ex Executor) bool {
	if ex.IsAttachedTo(c) {
		return true
	}
	for _, child := range c.Children() {
		if child.Contains(ex) {
			return true
		}
	}
	return false
}

// Attach registers ex with the System and records this container as its
// owner. Attaching an executor that already has a container panics.
func (c *Container) Attach(ex Executor) {
	c.system.attach(ex, c)
}

// Detach enqueues ex for removal from the System. It does not check that ex
// belongs to this container. Detaching twice is a no-op.
func (c *Container) Detach(ex Executor) {
	c.system.detach(ex)
}

// DetachAll detaches every executor attached to this container or to any
// descendant and returns how many were detached.
func (c *Container) DetachAll() int {
	detached := 0
	for _, ex := range c.system.snapshot() {
		if ex.IsDetached() || !c.Contains(ex) {
			continue
		}
		if c.system.detach(ex) {
			detached++
		}
	}
	return detached
}

// Listener creates and attaches a listener.
func (c *Container) Listener(t *event.Type, action Action, opts ...Option) *Listener {
	l := NewListener(t, action, opts...)
	c.Attach(l)
	return l
}

// ListenerCallback creates and attaches a listener whose action also
// receives the listener.
func (c *Container) ListenerCallback(t *event.Type, action CallbackAction, opts ...Option) *Listener {
	l := NewListenerCallback(t, action, opts...)
	c.Attach(l)
	return l
}

// Task creates and attaches a task.
func (c *Container) Task(t *event.Type, action Action, opts ...Option) *Task {
	task := NewTask(t, action, opts...)
	c.Attach(task)
	return task
}
