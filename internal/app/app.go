package app

import (
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dshills/eventsys/internal/config"
	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
	"github.com/dshills/eventsys/internal/httpapi"
	"github.com/dshills/eventsys/internal/logging"
	"github.com/dshills/eventsys/internal/metrics"
	"github.com/dshills/eventsys/internal/plugin/lua"
)

// Application owns one event system and everything attached to it.
type Application struct {
	mu sync.RWMutex

	config  config.Config
	logger  zerolog.Logger
	system  *execution.System
	root    *execution.Container
	plugins map[string]*lua.Plugin

	registry *prometheus.Registry
	handler  http.Handler
	metrics  *Metrics

	running  atomic.Bool
	ready    atomic.Bool
	shutdown atomic.Bool
}

var _ httpapi.Source = (*Application)(nil)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to a TOML or YAML configuration file.
	ConfigPath string

	// LogLevel overrides the configured logging level.
	LogLevel string

	// Plugins are script paths loaded in addition to the configured ones.
	Plugins []string

	// LogOutput receives log output. Defaults to stderr.
	LogOutput io.Writer
}

// New loads configuration and builds the application. Plugins are loaded
// before New returns.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &ComponentError{Component: "config", Action: "load", Err: err}
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	return NewWithConfig(cfg, opts)
}

// NewWithConfig builds the application from an already loaded configuration.
func NewWithConfig(cfg config.Config, opts Options) (*Application, error) {
	logCfg := cfg.LoggerConfig()
	logCfg.Output = opts.LogOutput
	logCfg.Service = "eventsys"
	logger := logging.New(logCfg)

	if err := config.Apply(cfg); err != nil {
		return nil, &ComponentError{Component: "config", Action: "apply", Err: err}
	}

	app := &Application{
		config:  cfg,
		logger:  logger,
		plugins: make(map[string]*lua.Plugin),
		metrics: NewMetrics(),
	}

	failureLog := execution.LogSink(logging.Component(logger, "dispatch"))
	app.system = execution.NewSystem(
		execution.WithLogger(logging.Component(logger, "dispatch")),
		execution.WithErrorSink(func(f *execution.ExecutorFailure) {
			app.metrics.RecordFailure()
			failureLog(f)
		}),
	)
	app.root = app.system.NewContainer("app")

	app.registry = metrics.NewRegistry(app.system)
	app.handler = httpapi.NewRouter(app, app.registry, logging.Component(logger, "http"))

	paths := append(append([]string(nil), cfg.Plugins.Paths...), opts.Plugins...)
	if err := app.loadPlugins(paths); err != nil {
		app.Shutdown()
		return nil, err
	}

	logger.Info().
		Bool("abstract_events", execution.AbstractEvents()).
		Int("plugins", len(app.plugins)).
		Msg("application initialized")
	return app, nil
}

// loadPlugins creates and loads a plugin per path.
func (app *Application) loadPlugins(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	timeout, _ := app.config.Plugins.TimeoutDuration()
	parent := app.root.Child("plugins")
	pluginLog := logging.Component(app.logger, "plugin")

	errs := &ErrorList{}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			errs.Add(&ComponentError{Component: "plugin " + path, Action: "resolve", Err: err})
			continue
		}
		if _, ok := app.plugins[abs]; ok {
			continue
		}

		p := lua.New(abs, parent,
			lua.WithLogger(pluginLog),
			lua.WithDefaultPriority(app.config.DefaultPriority()),
			lua.WithStateOptions(lua.WithExecutionTimeout(timeout)),
		)
		if err := p.Load(); err != nil {
			errs.Add(&ComponentError{Component: "plugin " + p.Name(), Action: "load", Err: err})
			continue
		}
		app.plugins[abs] = p
	}
	return errs.AsError()
}

// Fire delivers a Message of the named type and reports whether a handler
// cancelled it.
func (app *Application) Fire(typeName string, fields map[string]any) (bool, error) {
	if app.shutdown.Load() {
		return false, ErrShutdown
	}

	t, ok := event.Lookup(typeName)
	if !ok {
		return false, &ComponentError{Component: "fire", Action: typeName, Err: ErrUnknownType}
	}
	if t.IsAbstract() {
		return false, &ComponentError{Component: "fire", Action: typeName, Err: ErrAbstractType}
	}

	start := time.Now()
	cancelled := app.system.Call(event.NewMessage(t, "app", fields))
	app.metrics.RecordFire(time.Since(start), cancelled)
	return cancelled, nil
}

// System returns the event system.
func (app *Application) System() *execution.System {
	return app.system
}

// Container returns the root container. Executors attached to it are
// detached by Shutdown.
func (app *Application) Container() *execution.Container {
	return app.root
}

// Config returns the configuration the application was built with.
func (app *Application) Config() config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() zerolog.Logger {
	return app.logger
}

// Registry returns the Prometheus registry behind /metrics.
func (app *Application) Registry() *prometheus.Registry {
	return app.registry
}

// Handler returns the admin HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.handler
}

// Metrics returns the application metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Stats returns the event system counters.
func (app *Application) Stats() execution.Stats {
	return app.system.Stats()
}

// Ready reports whether Run has started every component.
func (app *Application) Ready() bool {
	return app.ready.Load()
}

// IsRunning reports whether Run is in progress.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Plugins returns the loaded plugins.
func (app *Application) Plugins() []*lua.Plugin {
	app.mu.RLock()
	defer app.mu.RUnlock()

	out := make([]*lua.Plugin, 0, len(app.plugins))
	for _, p := range app.plugins {
		out = append(out, p)
	}
	return out
}
