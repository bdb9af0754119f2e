package config

import (
	"fmt"
	"slices"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
)

// Apply installs the events section into the process: it sets the
// abstract-events toggle and registers the declared types.
func Apply(cfg Config) error {
	execution.SetAbstractEvents(cfg.Events.Abstract)
	return RegisterTypes(cfg.Events.Types)
}

// RegisterTypes registers decls in the event type registry. A declaration
// may name parents declared later in the list or already registered. A name
// that is already registered is accepted when it matches the declaration.
func RegisterTypes(decls []TypeDecl) error {
	pending := slices.Clone(decls)
	for len(pending) > 0 {
		var next []TypeDecl
		for _, decl := range pending {
			ok, err := registerType(decl)
			if err != nil {
				return err
			}
			if !ok {
				next = append(next, decl)
			}
		}
		if len(next) == len(pending) {
			return fmt.Errorf("%w: %s needs %v", ErrUnknownParent, next[0].Name, missingParents(next[0]))
		}
		pending = next
	}
	return nil
}

// registerType registers decl if all its parents exist. It returns false
// when a parent is still missing.
func registerType(decl TypeDecl) (bool, error) {
	parents := make([]*event.Type, 0, len(decl.Parents))
	for _, name := range decl.Parents {
		p, ok := event.Lookup(name)
		if !ok {
			return false, nil
		}
		parents = append(parents, p)
	}

	if existing, ok := event.Lookup(decl.Name); ok {
		if existing.IsAbstract() != decl.Abstract || !sameParents(existing.Parents(), parents) {
			return false, fmt.Errorf("%w: %s is already registered differently", ErrTypeConflict, decl.Name)
		}
		return true, nil
	}

	if decl.Abstract {
		event.NewAbstractType(decl.Name, parents...)
	} else {
		event.NewType(decl.Name, parents...)
	}
	return true, nil
}

func sameParents(a, b []*event.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for _, p := range b {
		if !slices.Contains(a, p) {
			return false
		}
	}
	return true
}

func missingParents(decl TypeDecl) []string {
	var missing []string
	for _, name := range decl.Parents {
		if _, ok := event.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
