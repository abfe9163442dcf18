// Package app wires the smt-tools subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads the compendium, opens
// the build store and builds the HTTP surface, Run serves until the context
// ends, and Shutdown tears everything down in order.
//
// For testing, inject in-memory implementations via functional options
// (WithCompendium, WithBuildStore, WithMetrics). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pickled-dev/smt-tools/internal/api"
	"github.com/pickled-dev/smt-tools/internal/buildstore"
	"github.com/pickled-dev/smt-tools/internal/config"
	"github.com/pickled-dev/smt-tools/internal/health"
	"github.com/pickled-dev/smt-tools/internal/mcp"
	"github.com/pickled-dev/smt-tools/internal/observe"
	"github.com/pickled-dev/smt-tools/internal/service"
	"github.com/pickled-dev/smt-tools/pkg/compendium"
)

// Breaker settings for the build store.
const (
	storeMaxFailures = 5
	storeCooldown    = 30 * time.Second
)

// readHeaderTimeout bounds slow clients.
const readHeaderTimeout = 10 * time.Second

// Backend is a build store the App can health-check and close.
type Backend interface {
	buildstore.Store
	Ping(ctx context.Context) error
	Close()
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	comp    *compendium.Compendium
	store   Backend
	metrics *observe.Metrics
	svc     *service.Service
	handler http.Handler
	server  *http.Server

	version        string
	metricsHandler http.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCompendium injects a compendium instead of loading one from
// cfg.Compendium.Path.
func WithCompendium(c *compendium.Compendium) Option {
	return func(a *App) { a.comp = c }
}

// WithBuildStore injects a build store instead of opening the configured
// backend.
func WithBuildStore(s Backend) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects metric instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithVersion sets the build version reported by /healthz.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithMetricsHandler serves h at /metrics instead of the default Prometheus
// registry, typically [observe.Telemetry.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// Stores returns the registry of build store backends shipped with
// smt-tools: "memory" and "postgres".
func Stores() *config.Registry[Backend] {
	reg := config.NewRegistry[Backend]()
	reg.Register(config.StoreMemory, func(context.Context, config.StoreConfig) (Backend, error) {
		return buildstore.NewMemStore(), nil
	})
	reg.Register(config.StorePostgres, func(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
		pg, err := buildstore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return buildstore.NewGuarded(pg, storeMaxFailures, storeCooldown), nil
	})
	return reg
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = observe.MetricsHandler()
	}

	// ── 1. Compendium ────────────────────────────────────────────────────
	if a.comp == nil {
		c, err := LoadCompendium(cfg.Compendium)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.comp = c
	}
	slog.Info("compendium loaded",
		"game", a.comp.Game(),
		"creatures", len(a.comp.Creatures()),
		"skills", len(a.comp.Skills()),
		"recipes", len(a.comp.Recipes()),
	)

	// ── 2. Build store ───────────────────────────────────────────────────
	if a.store == nil {
		s, err := Stores().Create(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("app: open build store: %w", err)
		}
		a.store = s
		slog.Info("build store opened", "backend", cfg.Store.Backend)
	}
	a.closers = append(a.closers, func() error {
		a.store.Close()
		return nil
	})

	// ── 3. Service ───────────────────────────────────────────────────────
	a.svc = service.New(a.comp,
		service.WithMetrics(a.metrics),
		service.WithBuildStore(a.store),
		service.WithLimits(Limits(cfg.Search)),
	)

	// ── 4. HTTP surface ──────────────────────────────────────────────────
	a.handler = a.buildHandler()

	return a, nil
}

func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()
	api.New(a.svc).Register(mux)

	health.New(a.version,
		health.Checker{Name: "compendium", Check: func(context.Context) error {
			if len(a.svc.Compendium().Creatures()) == 0 {
				return errors.New("compendium is empty")
			}
			return nil
		}},
		health.Checker{Name: "store", Check: a.store.Ping, Optional: true},
	).Register(mux)

	mux.Handle("GET /metrics", a.metricsHandler)

	if a.cfg.MCP.Enabled {
		mux.Handle(a.cfg.MCP.Path, mcp.New(a.svc, mcp.WithMetrics(a.metrics)).Handler())
		slog.Info("mcp endpoint enabled", "path", a.cfg.MCP.Path)
	}

	return observe.Middleware(a.metrics)(mux)
}

// LoadCompendium loads the compendium file named by cfg and checks its game
// label.
func LoadCompendium(cfg config.CompendiumConfig) (*compendium.Compendium, error) {
	c, err := compendium.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Game != "" && c.Game() != "" && cfg.Game != c.Game() {
		return nil, fmt.Errorf("compendium %q is for game %q, want %q", cfg.Path, c.Game(), cfg.Game)
	}
	return c, nil
}

// Limits converts search configuration to service limits.
func Limits(cfg config.SearchConfig) service.Limits {
	return service.Limits{
		MaxLevel:       cfg.MaxLevel,
		RecursionLimit: cfg.RecursionLimit,
		ResultCap:      cfg.ResultCap,
		Timeout:        cfg.Timeout,
		MaxBatch:       cfg.MaxBatch,
	}
}

// Service returns the search service, for transports wired outside the App
// such as the Discord bot.
func (a *App) Service() *service.Service { return a.svc }

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies a configuration change to the running App. Search limits
// take effect for the next search; a changed compendium is reloaded and
// swapped in. Settings that need a restart are left alone.
func (a *App) Reload(d config.ConfigDiff, cfg *config.Config) {
	if d.SearchChanged {
		a.svc.SetLimits(Limits(d.NewSearch))
		slog.Info("search limits reloaded",
			"max_level", d.NewSearch.MaxLevel,
			"timeout", d.NewSearch.Timeout,
			"max_batch", d.NewSearch.MaxBatch,
		)
	}
	if d.CompendiumChanged {
		c, err := LoadCompendium(cfg.Compendium)
		if err != nil {
			slog.Error("compendium reload failed, keeping the current one", "err", err)
			return
		}
		a.svc.SetCompendium(c)
		slog.Info("compendium reloaded", "path", cfg.Compendium.Path, "game", c.Game())
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Serve serves HTTP on ln until ctx is cancelled, then stops accepting
// connections. In-flight requests are drained by [App.Shutdown].
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	a.closers = append([]func() error{func() error { return a.server.Close() }}, a.closers...)

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Serve(ln) }()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return nil
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: the HTTP server drains in-flight requests until ctx expires, and
// if ctx expires before all closers finish, remaining closers are skipped
// and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
