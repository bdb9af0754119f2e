package event

import "sync"

// Message is a cancellable event whose type is chosen at runtime.
//
// It is used where no Go struct exists for an event, for example when a Lua
// script or the command line fires an event declared in configuration.
type Message struct {
	Cancellable

	kind     *Type
	mu       sync.RWMutex
	fields   map[string]any
	Metadata Metadata
}

// NewMessage creates a message of type t carrying a copy of fields.
// It panics if t is nil or abstract.
func NewMessage(t *Type, source string, fields map[string]any) *Message {
	if t == nil {
		panic("event: NewMessage called with nil type")
	}
	if t.abstract {
		panic("event: cannot fire abstract type " + t.name)
	}

	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &Message{
		kind:     t,
		fields:   copied,
		Metadata: NewMetadata(source),
	}
}

// Type implements Event.
func (m *Message) Type() *Type {
	return m.kind
}

// Get returns the value of a field.
func (m *Message) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.fields[key]
	return v, ok
}

// Set stores a field value. Handlers later in the order observe it.
func (m *Message) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fields[key] = value
}

// Fields returns a copy of all fields.
func (m *Message) Fields() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	copied := make(map[string]any, len(m.fields))
	for k, v := range m.fields {
		copied[k] = v
	}
	return copied
}
