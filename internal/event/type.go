package event

import (
	"sort"
	"sync"
)

// Type is the runtime identity of an event.
//
// A Type is a tag with a unique name, an optional set of parent types and an
// abstract flag. Abstract types are never carried by a fired event; they only
// exist so executors can register for a whole family of events. The full
// ancestor set is computed once, when the type is created.
type Type struct {
	name      string
	abstract  bool
	parents   []*Type
	ancestors []*Type
	lineage   map[*Type]struct{}
}

var (
	typesMu sync.RWMutex
	types   = make(map[string]*Type)
)

// NewType creates and registers a concrete event type.
// It panics if name is empty or already registered.
func NewType(name string, parents ...*Type) *Type {
	return register(name, false, parents)
}

// NewAbstractType creates and registers an abstract event type.
// It panics if name is empty or already registered.
func NewAbstractType(name string, parents ...*Type) *Type {
	return register(name, true, parents)
}

func register(name string, abstract bool, parents []*Type) *Type {
	if name == "" {
		panic("event: type name must not be empty")
	}
	for _, p := range parents {
		if p == nil {
			panic("event: nil parent for type " + name)
		}
	}

	t := &Type{
		name:     name,
		abstract: abstract,
		parents:  append([]*Type(nil), parents...),
		lineage:  make(map[*Type]struct{}),
	}

	// Breadth-first so nearer ancestors come first.
	queue := append([]*Type(nil), parents...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, seen := t.lineage[next]; seen {
			continue
		}
		t.lineage[next] = struct{}{}
		t.ancestors = append(t.ancestors, next)
		queue = append(queue, next.parents...)
	}

	typesMu.Lock()
	defer typesMu.Unlock()
	if _, exists := types[name]; exists {
		panic("event: duplicate type name " + name)
	}
	types[name] = t
	return t
}

// Name returns the registered type name.
func (t *Type) Name() string {
	return t.name
}

// String implements fmt.Stringer.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// IsAbstract reports whether the type may only be used for registration.
func (t *Type) IsAbstract() bool {
	return t.abstract
}

// Parents returns the direct parents of the type.
func (t *Type) Parents() []*Type {
	return append([]*Type(nil), t.parents...)
}

// Ancestors returns every ancestor of the type, nearest first.
func (t *Type) Ancestors() []*Type {
	return append([]*Type(nil), t.ancestors...)
}

// Is reports whether t is other or derives from other.
func (t *Type) Is(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	if t == other {
		return true
	}
	_, ok := t.lineage[other]
	return ok
}

// Lookup returns the registered type with the given name.
func Lookup(name string) (*Type, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()

	t, ok := types[name]
	return t, ok
}

// Types returns all registered types sorted by name.
func Types() []*Type {
	typesMu.RLock()
	defer typesMu.RUnlock()

	result := make([]*Type, 0, len(types))
	for _, t := range types {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}
