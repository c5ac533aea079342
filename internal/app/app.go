// Package app wires all codevox subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the recognition engine,
// the context cache and the HTTP API; Run serves requests until the context
// is cancelled; Shutdown drains and stops everything. When a config path is
// given, the config file is watched and valid changes are applied without a
// restart by building a new engine and swapping it in atomically.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/codevox/internal/api"
	"github.com/MrWong99/codevox/internal/codectx"
	"github.com/MrWong99/codevox/internal/config"
	"github.com/MrWong99/codevox/internal/engine"
	"github.com/MrWong99/codevox/internal/health"
	"github.com/MrWong99/codevox/internal/identifier"
	"github.com/MrWong99/codevox/internal/observe"
)

// shutdownTimeout bounds the graceful stop performed by Run when its context
// is cancelled.
const shutdownTimeout = 10 * time.Second

// Option is a functional option for New.
type Option func(*App)

// WithConfigPath enables hot reload of the config file at path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithWatchInterval sets the config polling interval.
func WithWatchInterval(d time.Duration) Option {
	return func(a *App) { a.watchInterval = d }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar sets the level variable adjusted when server.log_level
// changes. It should be the level of the default logger's handler.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithListener serves on ln instead of listening on server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// runtime is the set of components rebuilt on reload.
type runtime struct {
	engine *engine.Engine
	cache  *codectx.Cache
}

// App owns all subsystem lifetimes.
type App struct {
	configPath     string
	watchInterval  time.Duration
	metrics        *observe.Metrics
	metricsHandler http.Handler
	level          *slog.LevelVar
	listener       net.Listener

	// current is swapped atomically on reload. It is never nil after New.
	current atomic.Pointer[runtime]

	// reloadMu serialises reloads so two rebuilds cannot race on the swap.
	reloadMu sync.Mutex
	active   *config.Config

	health  *health.Handler
	server  *http.Server
	watcher *config.Watcher

	stopOnce sync.Once
	stopErr  error
}

// New creates an App from cfg. Use Option functions to enable hot reload and
// to inject the listener, metrics and logger level.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{active: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
	}
	a.level.Set(cfg.Server.LogLevel.SlogLevel())

	// ── 1. Engine + context cache ────────────────────────────────────────
	rt, err := a.buildRuntime(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build engine: %w", err)
	}
	a.current.Store(rt)

	// ── 2. HTTP API ──────────────────────────────────────────────────────
	a.health = health.New([]health.Checker{
		{Name: "engine", Check: a.checkEngine},
		{Name: "context", Check: a.checkContext},
	})
	srv := api.New(a.Engine,
		api.WithMetrics(a.metrics),
		api.WithHealth(a.health),
		api.WithMetricsHandler(a.metricsHandler),
	)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ── 3. Config watcher ────────────────────────────────────────────────
	if a.configPath != "" {
		wopts := []config.WatcherOption{config.WithErrorHandler(func(err error) {
			a.metrics.RecordConfigReload(context.Background(), "error")
		})}
		if a.watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(a.watchInterval))
		}
		w, err := config.NewWatcher(a.configPath, a.onConfigChange, wopts...)
		if err != nil {
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
	}

	observe.Logger(ctx).Info("app initialised",
		"listen_addr", cfg.Server.ListenAddr,
		"hot_reload", a.watcher != nil,
		"context_source", cfg.Context.SourceFile != "",
	)
	return a, nil
}

// Engine returns the engine currently in use.
func (a *App) Engine() *engine.Engine {
	return a.current.Load().engine
}

// Identifiers returns the context identifiers currently served to the
// pipeline: the static list followed by captured identifiers. It returns nil
// when no context is configured.
func (a *App) Identifiers(ctx context.Context) ([]identifier.Identifier, error) {
	rt := a.current.Load()
	if rt.cache == nil {
		return nil, nil
	}
	return rt.cache.Identifiers(ctx)
}

// Handler returns the HTTP handler, for embedding codevox in another server.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.server.Addr, err)
		}
	}

	// Serve also returns when Shutdown is called directly; cancel then so
	// the shutdown goroutine does not wait for ctx.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "addr", ln.Addr().String())
	return g.Wait()
}

// Reload rebuilds the engine from the active config, re-reading the
// identifier list and dropping cached context identifiers.
func (a *App) Reload(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	rt, err := a.buildRuntime(a.active)
	if err != nil {
		a.metrics.RecordConfigReload(ctx, "error")
		return fmt.Errorf("app: reload: %w", err)
	}
	a.current.Store(rt)
	a.metrics.RecordConfigReload(ctx, "ok")
	observe.Logger(ctx).Info("engine reloaded")
	return nil
}

// Shutdown marks the app as draining, stops the HTTP server and the config
// watcher. It is safe to call more than once; later calls return the result
// of the first.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		a.health.SetDraining(true)

		var errs []error
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: stop server: %w", err))
		}
		if a.watcher != nil {
			a.watcher.Stop()
		}
		a.stopErr = errors.Join(errs...)
		slog.Info("shutdown complete")
	})
	return a.stopErr
}

// onConfigChange applies a changed config file.
func (a *App) onConfigChange(old, new *config.Config) {
	ctx := context.Background()
	d := config.Diff(old, new)

	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	if d.RecognitionChanged || d.ContextChanged {
		rt, err := a.buildRuntime(new)
		if err != nil {
			a.metrics.RecordConfigReload(ctx, "error")
			slog.Warn("config reload rejected; keeping previous engine", "err", err)
			return
		}
		a.current.Store(rt)
	}
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("changed settings take effect after restart", "settings", d.RestartRequired)
	}
	a.active = new
	a.metrics.RecordConfigReload(ctx, "ok")
	slog.Info("config applied",
		"log_level_changed", d.LogLevelChanged,
		"recognition_changed", d.RecognitionChanged,
		"context_changed", d.ContextChanged,
	)
}

// buildRuntime builds the engine and context cache described by cfg.
func (a *App) buildRuntime(cfg *config.Config) (*runtime, error) {
	var static []identifier.Identifier
	if cfg.Context.IdentifiersFile != "" {
		ids, err := codectx.LoadIdentifierFile(cfg.Context.IdentifiersFile)
		if err != nil {
			return nil, err
		}
		static = ids
	}

	var src codectx.Source
	if cfg.Context.SourceFile != "" {
		src = codectx.Guard(cfg.Context.SourceFile, codectx.FileSource{Path: cfg.Context.SourceFile})
	}

	cl := engine.NewClassifier(cfg.Recognition)
	opts := []engine.Option{engine.WithClassifier(cl), engine.WithMetrics(a.metrics)}

	rt := &runtime{}
	if src != nil || len(static) > 0 {
		rt.cache = codectx.NewCache(src,
			codectx.WithTTL(cfg.Context.TTL),
			codectx.WithMaxIdentifiers(cfg.Context.MaxIdentifiers),
			codectx.WithClassifier(cl),
			codectx.WithStatic(static),
			codectx.WithMetrics(a.metrics),
		)
		opts = append(opts, engine.WithIdentifierSource(rt.cache))
	}
	rt.engine = engine.New(cfg.Recognition, opts...)
	return rt, nil
}

func (a *App) checkEngine(context.Context) error {
	if a.current.Load() == nil {
		return errors.New("engine not built")
	}
	return nil
}

// checkContext fails when a configured context source cannot be captured.
func (a *App) checkContext(ctx context.Context) error {
	rt := a.current.Load()
	if rt.cache == nil {
		return nil
	}
	_, err := rt.cache.Identifiers(ctx)
	return err
}
