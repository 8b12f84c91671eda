// Package app wires configuration, storage, plugins and the session controller together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/sugoi/internal/config"
	"github.com/ayusman/sugoi/internal/loop"
	"github.com/ayusman/sugoi/internal/output"
	"github.com/ayusman/sugoi/internal/plugin"
	"github.com/ayusman/sugoi/internal/plugin/builtin"
	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
	"github.com/ayusman/sugoi/internal/server"
	"github.com/ayusman/sugoi/internal/session"
	"github.com/ayusman/sugoi/internal/store"
)

// Options overrides parts of the wiring.
type Options struct {
	// Launcher defaults to an ExecLauncher built from the engine config.
	Launcher session.Launcher
	// Resolver defaults to procfs.
	Resolver profile.Resolver
	// Sinks receive session events in addition to the buffer and the websocket hub.
	Sinks []session.Sink
}

// App is the running sugoi instance.
type App struct {
	cfg        *config.Config
	loop       *loop.Loop
	store      *store.Store
	plugins    *plugin.Registry
	manager    *plugin.Manager
	matcher    *profile.Matcher
	controller *session.Controller
	buffer     *output.Buffer
	hub        *server.Hub
}

// New opens the store, registers and restores plugins and builds the controller.
// The control loop starts with Run.
func New(cfg *config.Config, opts Options) (*App, error) {
	st, err := store.New(cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		loop:    loop.New(loop.DefaultQueueSize),
		store:   st,
		plugins: plugin.NewRegistry(st.Plugins()),
		manager: plugin.NewManager(cfg.Plugins.Dir, plugin.NewExecutor(cfg.Plugins.Timeout)),
		buffer:  output.NewBuffer(),
		hub:     server.NewHub(),
	}

	if err := builtin.Register(a.plugins); err != nil {
		st.Close()
		return nil, fmt.Errorf("register built-in plugins: %w", err)
	}
	// Sync may persist, so the saved state is read first.
	state, err := st.Plugins().Load()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load plugin state: %w", err)
	}
	if err := a.manager.Sync(a.plugins); err != nil {
		log.Printf("app: discover plugins in %s: %v", cfg.Plugins.Dir, err)
	}
	a.plugins.Restore(state)

	sched := profile.SchedulerFunc(func(d time.Duration, fn func()) profile.Stopper {
		return a.loop.AfterFunc(d, fn)
	})
	a.matcher = profile.NewMatcher(st.Profiles(), opts.Resolver, sched, profile.Config{
		RetryDelay: cfg.Profiles.RetryDelay,
		MaxRetries: cfg.Profiles.MaxRetries,
	})

	launcher := opts.Launcher
	if launcher == nil {
		launcher = EngineLauncher(cfg)
	}
	sinks := append(session.Sinks{a.buffer, a.hub}, opts.Sinks...)
	a.controller = session.NewController(a.loop, session.Options{
		Launcher:    launcher,
		Plugins:     a.plugins,
		Matcher:     a.matcher,
		Sink:        sinks,
		GracePeriod: cfg.Engine.GracePeriod,
	})

	return a, nil
}

// EngineLauncher builds the launcher for the configured engine executables.
func EngineLauncher(cfg *config.Config) session.ExecLauncher {
	engines := make(map[protocol.Variant]session.EngineCommand)
	if cfg.Engine.A.Path != "" {
		engines[protocol.VariantA] = session.EngineCommand{Path: cfg.Engine.A.Path, Args: cfg.Engine.A.Args}
	}
	if cfg.Engine.B.Path != "" {
		engines[protocol.VariantB] = session.EngineCommand{Path: cfg.Engine.B.Path, Args: cfg.Engine.B.Args}
	}
	return session.ExecLauncher{Engines: engines}
}

// Run starts the control loop, the HTTP server when an address is configured and the
// plugin watcher when enabled. It blocks until ctx is cancelled or a component fails,
// then detaches any session and closes the store.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.loop.Run(loopCtx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		stopLoop()
		return nil
	})

	if addr := a.cfg.Server.Addr; addr != "" {
		srv := server.New(server.Config{
			StaticDir: a.cfg.Server.StaticDir,
			SaveDir:   a.cfg.Server.SaveDir,
			Session:   a.controller,
			Plugins:   pluginService{a},
			Profiles:  a.store.Profiles(),
			Output:    a.buffer,
			Hub:       a.hub,
		})
		g.Go(func() error {
			log.Printf("app: serving on %s", addr)
			if err := srv.ListenAndServe(gctx, addr); err != nil {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		})
	}

	if a.cfg.Plugins.Watch {
		dir := a.manager.PluginDir()
		w, err := plugin.NewWatcher(dir)
		if err != nil {
			log.Printf("app: watch %s: %v", dir, err)
		} else {
			log.Printf("app: watching %s for plugins", dir)
			w.OnChange = a.rediscover
			w.OnError = func(err error) { log.Printf("app: plugin watcher: %v", err) }
			g.Go(func() error {
				if err := w.Run(gctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}

	return g.Wait()
}

func (a *App) shutdown() {
	if a.controller.Status().State == session.StateAttached {
		if err := a.controller.Detach(); err != nil {
			log.Printf("app: detach on shutdown: %v", err)
		}
	}
}

// rediscover reconciles the plugin registry with the plugin directory.
func (a *App) rediscover() {
	a.loop.Post(func() {
		if err := a.manager.Sync(a.plugins); err != nil {
			log.Printf("app: rediscover plugins: %v", err)
		}
	})
}

// Controller returns the session controller.
func (a *App) Controller() *session.Controller {
	return a.controller
}

// Buffer returns the output buffer.
func (a *App) Buffer() *output.Buffer {
	return a.buffer
}

// Hub returns the websocket event hub.
func (a *App) Hub() *server.Hub {
	return a.hub
}

// Plugins returns the plugin registry. It may only be used directly before Run;
// afterwards it belongs to the control loop.
func (a *App) Plugins() *plugin.Registry {
	return a.plugins
}

// Profiles returns the game profile repository.
func (a *App) Profiles() *store.ProfileRepository {
	return a.store.Profiles()
}

// Close releases the store of an App that was never run.
func (a *App) Close() error {
	return a.store.Close()
}

// pluginService exposes the registry to the API through the control loop.
type pluginService struct {
	a *App
}

func (s pluginService) Descriptors() ([]plugin.Descriptor, error) {
	var out []plugin.Descriptor
	err := s.a.loop.Call(func() { out = s.a.plugins.Descriptors() })
	return out, err
}

func (s pluginService) Apply(identity string, u plugin.Update) (plugin.Descriptor, error) {
	var (
		d   plugin.Descriptor
		err error
	)
	if callErr := s.a.loop.Call(func() {
		if err = s.a.plugins.Apply(identity, u); err == nil {
			d, err = s.a.plugins.Describe(identity)
		}
	}); callErr != nil {
		return plugin.Descriptor{}, callErr
	}
	return d, err
}
