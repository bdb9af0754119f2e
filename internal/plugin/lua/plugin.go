package lua

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
)

// ModuleName is the global table scripts use to register handlers.
const ModuleName = "events"

// Plugin is a Lua script whose handlers live in their own container.
//
// The container is a child of the one given to New and survives reloads,
// so the executors of every generation of the script share one subtree.
type Plugin struct {
	path            string
	name            string
	container       *execution.Container
	logger          zerolog.Logger
	defaultPriority execution.Priority
	stateOpts       []StateOption

	mu     sync.Mutex
	state  *State
	loaded bool
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger sets the plugin logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Plugin) {
		p.logger = l
	}
}

// WithDefaultPriority sets the priority of handlers that do not name one.
func WithDefaultPriority(pr execution.Priority) Option {
	return func(p *Plugin) {
		p.defaultPriority = pr
	}
}

// WithStateOptions passes options to every state the plugin creates.
func WithStateOptions(opts ...StateOption) Option {
	return func(p *Plugin) {
		p.stateOpts = append(p.stateOpts, opts...)
	}
}

// New creates an unloaded plugin for the script at path.
func New(path string, parent *execution.Container, opts ...Option) *Plugin {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p := &Plugin{
		path:            path,
		name:            name,
		container:       parent.Child("plugin " + name),
		logger:          zerolog.Nop(),
		defaultPriority: execution.PriorityDefault,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("plugin", name).Logger()
	return p
}

// Name returns the script name without extension.
func (p *Plugin) Name() string {
	return p.name
}

// Path returns the script path.
func (p *Plugin) Path() string {
	return p.path
}

// Container returns the container holding the plugin's executors.
func (p *Plugin) Container() *execution.Container {
	return p.container
}

// Loaded reports whether the script is loaded.
func (p *Plugin) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Load runs the script. Handlers it registers are attached immediately.
// If the script fails, everything it attached is detached again.
func (p *Plugin) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return ErrAlreadyLoaded
	}
	return p.load()
}

func (p *Plugin) load() error {
	opts := append([]StateOption{WithPrint(func(s string) {
		p.logger.Info().Str("source", "print").Msg(s)
	})}, p.stateOpts...)

	state := NewState(opts...)
	registerTypes(state.L)
	state.RegisterModule(ModuleName, p.module(state))

	if err := state.DoFile(p.path); err != nil {
		detached := p.container.DetachAll()
		_ = state.Close()
		p.logger.Warn().Err(err).Int("detached", detached).Msg("plugin load failed")
		return &ScriptError{Path: p.path, Err: err}
	}

	p.state = state
	p.loaded = true
	p.logger.Info().Msg("plugin loaded")
	return nil
}

// Unload detaches every executor of the plugin and closes its state.
// It returns the number of executors detached.
func (p *Plugin) Unload() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.unload()
}

func (p *Plugin) unload() int {
	if !p.loaded {
		return 0
	}
	detached := p.container.DetachAll()
	_ = p.state.Close()
	p.state = nil
	p.loaded = false
	p.logger.Info().Int("detached", detached).Msg("plugin unloaded")
	return detached
}

// Reload unloads the plugin if it is loaded and runs the script again.
func (p *Plugin) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unload()
	return p.load()
}

// module builds the events table bound to state.
func (p *Plugin) module(state *State) map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"on": func(L *lua.LState) int {
			t, fn, opts := p.handlerArgs(L)
			l := p.register(L, func() execution.Executor {
				return execution.NewListenerCallback(t, func(ev event.Event, self execution.Executor) error {
					return state.Invoke(fn, func(L *lua.LState) []lua.LValue {
						return []lua.LValue{NewEventValue(L, ev), NewExecutorValue(L, self)}
					})
				}, opts...)
			})
			L.Push(NewExecutorValue(L, l))
			return 1
		},
		"once": func(L *lua.LState) int {
			t, fn, opts := p.handlerArgs(L)
			if tbl, ok := L.Get(3).(*lua.LTable); ok {
				if d, ok := tbl.RawGetString("delay").(lua.LNumber); ok {
					if d < 0 {
						L.ArgError(3, "delay must not be negative")
					}
					if float64(d) != math.Trunc(float64(d)) {
						L.ArgError(3, "delay must be a whole number of calls")
					}
					opts = append(opts, execution.WithDelay(int(d)))
				}
			}
			task := p.register(L, func() execution.Executor {
				return execution.NewTask(t, func(ev event.Event) error {
					return state.Invoke(fn, func(L *lua.LState) []lua.LValue {
						return []lua.LValue{NewEventValue(L, ev)}
					})
				}, opts...)
			})
			L.Push(NewExecutorValue(L, task))
			return 1
		},
		"log": func(L *lua.LState) int {
			p.logger.Info().Str("source", "script").Msg(L.CheckString(1))
			return 0
		},
		"types": func(L *lua.LState) int {
			types := event.Types()
			t := L.CreateTable(len(types), 0)
			for i, et := range types {
				t.RawSetInt(i+1, lua.LString(et.Name()))
			}
			L.Push(t)
			return 1
		},
	}
}

// handlerArgs reads (type, fn [, opts]) from the stack.
func (p *Plugin) handlerArgs(L *lua.LState) (*event.Type, *lua.LFunction, []execution.Option) {
	typeName := L.CheckString(1)
	fn := L.CheckFunction(2)

	t, ok := event.Lookup(typeName)
	if !ok {
		L.RaiseError("unknown event type %q", typeName)
		return nil, nil, nil
	}

	priority := p.defaultPriority
	name := fmt.Sprintf("%s/%s", p.name, typeName)

	if tbl, ok := L.Get(3).(*lua.LTable); ok {
		if s, ok := tbl.RawGetString("priority").(lua.LString); ok {
			pr, err := execution.ParsePriority(string(s))
			if err != nil {
				L.ArgError(3, err.Error())
			}
			priority = pr
		}
		if s, ok := tbl.RawGetString("name").(lua.LString); ok && s != "" {
			name = string(s)
		}
	} else if L.GetTop() >= 3 && L.Get(3) != lua.LNil {
		L.ArgError(3, "options table expected")
	}

	return t, fn, []execution.Option{execution.WithPriority(priority), execution.WithName(name)}
}

// register builds an executor and attaches it to the plugin container,
// turning contract violations into Lua errors.
func (p *Plugin) register(L *lua.LState, build func() execution.Executor) execution.Executor {
	ex, err := tryRegister(p.container, build)
	if err != nil {
		L.RaiseError("%v", err)
	}
	return ex
}

func tryRegister(c *execution.Container, build func() execution.Executor) (ex execution.Executor, err error) {
	defer func() {
		if r := recover(); r != nil {
			var v *execution.ViolationError
			if e, ok := r.(error); ok && errors.As(e, &v) {
				ex, err = nil, v
				return
			}
			panic(r)
		}
	}()
	ex = build()
	c.Attach(ex)
	return ex, nil
}
