// Package discovery attaches listeners for the handler methods of a value.
//
// Every exported method named On<Upper>... is a handler. It takes the event as
// its first parameter, optionally the listener itself as the second, and
// returns nothing or an error:
//
//	type Audit struct{}
//
//	func (a *Audit) OnSave(ev *SaveEvent) error { ... }
//	func (a *Audit) OnClose(ev *CloseEvent, self execution.Executor) { self.Detach() }
//
//	listeners := discovery.Bind(container, &Audit{})
//
// The event type is read from the zero value of the first parameter, so
// Type() must not depend on the value's fields.
package discovery

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
)

// PriorityProvider is implemented by handlers that set per-method priorities.
// Methods missing from the map use execution.PriorityDefault.
type PriorityProvider interface {
	HandlerPriorities() map[string]execution.Priority
}

var (
	eventType    = reflect.TypeFor[event.Event]()
	executorType = reflect.TypeFor[execution.Executor]()
	errorType    = reflect.TypeFor[error]()
)

// Method is a validated handler method.
type Method struct {
	name      string
	fn        reflect.Value
	param     reflect.Type
	eventType *event.Type
	withSelf  bool
}

// Bind creates a listener for every handler method of h and attaches it to c,
// in method name order. All methods are validated before anything is
// attached; an invalid method panics with a *SignatureError.
func Bind(c *execution.Container, h any) []execution.Executor {
	handlers := Scan(h)

	var priorities map[string]execution.Priority
	if p, ok := h.(PriorityProvider); ok {
		priorities = p.HandlerPriorities()
	}

	bound := make([]execution.Executor, 0, len(handlers))
	for _, hd := range handlers {
		priority, ok := priorities[hd.name]
		if !ok {
			priority = execution.PriorityDefault
		}
		bound = append(bound, execution.NewListenerCallback(hd.eventType, hd.action(),
			execution.WithPriority(priority),
			execution.WithName(hd.name),
		))
	}
	for _, l := range bound {
		c.Attach(l)
	}
	return bound
}

// Scan validates the handler methods of h and returns their names with
// the event types they handle, without attaching anything.
func Scan(h any) []Method {
	if h == nil {
		panic(&SignatureError{Receiver: "<nil>", Rule: RuleNilHandler})
	}

	v := reflect.ValueOf(h)
	t := v.Type()
	receiver := t.String()

	var methods []Method
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !isHandlerName(m.Name) {
			continue
		}
		methods = append(methods, inspect(receiver, m.Name, v.Method(i)))
	}
	return methods
}

// Name returns the method name.
func (h Method) Name() string {
	return h.name
}

// EventType returns the event type the method handles.
func (h Method) EventType() *event.Type {
	return h.eventType
}

// WithSelf reports whether the method receives its listener.
func (h Method) WithSelf() bool {
	return h.withSelf
}

func isHandlerName(name string) bool {
	if len(name) <= 2 || name[:2] != "On" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(name[2:])
	return unicode.IsUpper(r)
}

func inspect(receiver, name string, fn reflect.Value) Method {
	ft := fn.Type()
	fail := func(rule SignatureRule, detail string) {
		panic(&SignatureError{Receiver: receiver, Method: name, Rule: rule, Detail: detail})
	}

	if ft.NumIn() < 1 || ft.NumIn() > 2 {
		fail(RuleParamCount, fmt.Sprintf("has %d parameters", ft.NumIn()))
	}

	param := ft.In(0)
	if param.Kind() == reflect.Interface || !param.Implements(eventType) {
		fail(RuleEventParam, fmt.Sprintf("first parameter %s is not a concrete event", param))
	}

	withSelf := ft.NumIn() == 2
	if withSelf && ft.In(1) != executorType {
		fail(RuleExecutorParam, fmt.Sprintf("second parameter %s is not execution.Executor", ft.In(1)))
	}

	switch {
	case ft.NumOut() == 0:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
	default:
		fail(RuleResult, "must return nothing or error")
	}

	t, err := zeroType(param)
	if err != nil {
		fail(RuleEventType, err.Error())
	}
	if t.IsAbstract() && !execution.AbstractEvents() {
		fail(RuleEventType, fmt.Sprintf("handles abstract type %s while abstract events are disabled", t))
	}

	return Method{
		name:      name,
		fn:        fn,
		param:     param,
		eventType: t,
		withSelf:  withSelf,
	}
}

// zeroType calls Type on the zero value of param.
func zeroType(param reflect.Type) (t *event.Type, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Type() panicked on zero %s: %v", param, r)
		}
	}()

	var zero reflect.Value
	if param.Kind() == reflect.Pointer {
		zero = reflect.New(param.Elem())
	} else {
		zero = reflect.Zero(param)
	}

	t = zero.Interface().(event.Event).Type()
	if t == nil {
		return nil, fmt.Errorf("Type() of zero %s is nil", param)
	}
	return t, nil
}

// action adapts the method to an execution.CallbackAction.
func (h Method) action() execution.CallbackAction {
	return func(ev event.Event, self execution.Executor) error {
		arg := reflect.ValueOf(ev)
		if !arg.IsValid() || !arg.Type().AssignableTo(h.param) {
			return fmt.Errorf("%w: %s takes %s, got %T", execution.ErrEventTypeMismatch, h.name, h.param, ev)
		}

		args := []reflect.Value{arg}
		if h.withSelf {
			args = append(args, reflect.ValueOf(&self).Elem())
		}

		out := h.fn.Call(args)
		if len(out) == 1 && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}
}
