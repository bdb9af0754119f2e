package app

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/eventsys/internal/httpapi"
	"github.com/dshills/eventsys/internal/logging"
	"github.com/dshills/eventsys/internal/plugin/lua"
	"github.com/dshills/eventsys/internal/watcher"
)

// Run starts the admin server and the plugin watcher when they are enabled
// and blocks until ctx is cancelled or one of them fails.
func (app *Application) Run(ctx context.Context) error {
	if app.shutdown.Load() {
		return ErrShutdown
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)

	if app.config.Metrics.Enabled {
		srv := httpapi.NewServer(app.config.Metrics.Addr, app.handler, logging.Component(app.logger, "http"))
		g.Go(func() error {
			if err := srv.Run(ctx); err != nil {
				return &ComponentError{Component: "http", Action: "serve", Err: err}
			}
			return nil
		})
	}

	if app.config.Plugins.Watch && len(app.Plugins()) > 0 {
		w, err := app.newWatcher()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	app.ready.Store(true)
	app.logger.Info().
		Bool("metrics", app.config.Metrics.Enabled).
		Bool("watch", app.config.Plugins.Watch).
		Msg("application running")

	err := g.Wait()
	app.ready.Store(false)
	app.logger.Info().Err(err).Msg("application stopped")
	return err
}

// newWatcher watches every plugin file.
func (app *Application) newWatcher() (*watcher.Watcher, error) {
	debounce, _ := app.config.Plugins.DebounceDuration()
	w, err := watcher.New(func(path string) {
		if err := app.ReloadPlugin(path); err != nil {
			app.logger.Error().Err(err).Str("path", path).Msg("plugin reload failed")
		}
	},
		watcher.WithDebounce(debounce),
		watcher.WithLogger(logging.Component(app.logger, "watcher")),
	)
	if err != nil {
		return nil, &ComponentError{Component: "watcher", Action: "create", Err: err}
	}

	for _, p := range app.Plugins() {
		if err := w.Add(p.Path()); err != nil {
			_ = w.Close()
			return nil, &ComponentError{Component: "watcher", Action: "add " + p.Path(), Err: err}
		}
	}
	return w, nil
}

// ReloadPlugin reloads the plugin loaded from path.
func (app *Application) ReloadPlugin(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	app.mu.RLock()
	p, ok := app.plugins[abs]
	app.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, path)
	}

	if err := p.Reload(); err != nil {
		return &ComponentError{Component: "plugin " + p.Name(), Action: "reload", Err: err}
	}
	app.metrics.RecordReload()
	app.logger.Info().Str("plugin", p.Name()).Msg("plugin reloaded")
	return nil
}

// Shutdown unloads every plugin and detaches everything attached under the
// root container. It returns the number of executors detached and is safe
// to call more than once.
func (app *Application) Shutdown() int {
	if !app.shutdown.CompareAndSwap(false, true) {
		return 0
	}
	app.ready.Store(false)

	app.mu.Lock()
	plugins := app.plugins
	app.plugins = make(map[string]*lua.Plugin)
	app.mu.Unlock()

	detached := 0
	for _, p := range plugins {
		detached += p.Unload()
	}
	detached += app.root.DetachAll()

	app.logger.Info().Int("detached", detached).Msg("application shut down")
	return detached
}
