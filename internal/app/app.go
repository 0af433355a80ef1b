// Package app wires all Mimik subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects the gateway, runs the
// initial trigger-table synchronization, and builds the configured input
// sources; Run executes everything until the context is cancelled; Shutdown
// tears the subsystems down in order.
//
// For testing, inject fakes via functional options (WithGateway, WithBus).
// When an option is not provided, New creates the real implementation from
// the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ayanero/mimik/internal/bus"
	"github.com/ayanero/mimik/internal/config"
	"github.com/ayanero/mimik/internal/health"
	"github.com/ayanero/mimik/internal/hotkeys"
	"github.com/ayanero/mimik/internal/intent"
	"github.com/ayanero/mimik/internal/source"
	"github.com/ayanero/mimik/internal/source/emotion"
	"github.com/ayanero/mimik/internal/source/sim"
	"github.com/ayanero/mimik/internal/source/voice"
	"github.com/ayanero/mimik/internal/vts"
)

// Gateway is the avatar-control endpoint as the application consumes it.
// Satisfied by [vts.Client]; tests substitute a fake.
type Gateway interface {
	Connect(ctx context.Context) error
	Authenticate(ctx context.Context) error
	Hotkeys(ctx context.Context) ([]vts.Hotkey, error)
	Trigger(ctx context.Context, hotkeyID string) error
	Connected() bool
	Close() error
}

var _ Gateway = (*vts.Client)(nil)

// App owns all subsystem lifetimes and orchestrates the reaction pipeline.
type App struct {
	cfg *config.Config

	// Subsystems — initialised in New, torn down in Shutdown.
	bus      *bus.Bus
	gateway  Gateway
	sync     *hotkeys.Synchronizer
	engine   *intent.Engine
	agent    *vts.Agent
	registry *source.Registry
	sources  []source.Source
	httpSrv  *http.Server

	// running tracks which sources are currently live, keyed by source name.
	// Read by the readiness handler.
	running map[string]*atomic.Bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithGateway injects a gateway instead of dialing the configured endpoint.
func WithGateway(g Gateway) Option {
	return func(a *App) { a.gateway = g }
}

// WithBus injects an event bus instead of creating a fresh one.
func WithBus(b *bus.Bus) Option {
	return func(a *App) { a.bus = b }
}

// WithRegistry injects a source registry instead of the built-in one.
func WithRegistry(r *source.Registry) Option {
	return func(a *App) { a.registry = r }
}

// New creates an App by wiring all subsystems together. It performs all
// initialisation synchronously: gateway connect + authenticate, the initial
// trigger-table synchronization, and input source construction. A gateway
// that cannot be reached is fatal; an input source that cannot be built is
// logged and skipped, the rest of the application keeps going.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		running: make(map[string]*atomic.Bool),
	}
	for _, o := range opts {
		o(a)
	}
	if a.bus == nil {
		a.bus = bus.New()
	}

	if err := a.initGateway(ctx); err != nil {
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}
	if err := a.initTriggerTable(ctx); err != nil {
		return nil, fmt.Errorf("app: init trigger table: %w", err)
	}
	a.agent = vts.NewAgent(a.bus, a.gateway)
	a.initSources()
	a.initStatusServer()

	return a, nil
}

// initGateway dials and authenticates the control endpoint unless a gateway
// was injected pre-connected.
func (a *App) initGateway(ctx context.Context) error {
	if a.gateway == nil {
		gw := a.cfg.Gateway
		copts := []vts.ClientOption{
			vts.WithTokenPath(gw.TokenFile),
			vts.WithConnectRetry(gw.MaxRetries, time.Duration(gw.RetryDelaySeconds)*time.Second),
			vts.WithStatusBus(a.bus),
		}
		if gw.PluginName != "" {
			copts = append(copts, vts.WithPluginName(gw.PluginName))
		}
		a.gateway = vts.NewClient(gw.Host, gw.Port, copts...)
	}
	a.closers = append(a.closers, a.gateway.Close)

	if err := a.gateway.Connect(ctx); err != nil {
		return err
	}
	return a.gateway.Authenticate(ctx)
}

// initTriggerTable builds the synchronizer, runs the startup sync, and seeds
// the intent engine with the resulting table.
func (a *App) initTriggerTable(ctx context.Context) error {
	lister := hotkeys.ListerFunc(func(ctx context.Context) ([]hotkeys.Action, error) {
		remote, err := a.gateway.Hotkeys(ctx)
		if err != nil {
			return nil, err
		}
		actions := make([]hotkeys.Action, 0, len(remote))
		for _, h := range remote {
			actions = append(actions, hotkeys.Action{
				ID:        h.ID,
				Name:      h.Name,
				SourceKey: h.File,
				Type:      h.Type,
			})
		}
		return actions, nil
	})

	a.sync = hotkeys.NewSynchronizer(lister, a.cfg.Mapping.Path,
		hotkeys.WithActionType(a.cfg.Gateway.ActionType),
		hotkeys.WithDefaultCooldown(time.Duration(a.cfg.Mapping.DefaultCooldownSeconds)*time.Second),
	)

	table, err := a.sync.Sync(ctx)
	if err != nil {
		return err
	}

	a.engine = intent.New(a.bus, intent.WithCorrector(intent.NewCorrector()))
	a.engine.SetTable(table)
	return nil
}

// initSources builds one source per enabled name. A source that fails to
// construct (missing model, absent device) is skipped; the failure is fatal
// to that source only.
func (a *App) initSources() {
	if a.registry == nil {
		a.registry = source.NewRegistry()
		a.registry.Register(config.SourceVoice, voice.Factory)
		a.registry.Register(config.SourceEmotion, emotion.Factory)
		a.registry.Register(config.SourceSimulated, sim.Factory)
	}

	for _, name := range a.cfg.Sources.Enabled {
		s, err := a.registry.Create(name, a.cfg, a.bus)
		if err != nil {
			slog.Error("input source unavailable, continuing without it", "source", name, "error", err)
			continue
		}
		a.sources = append(a.sources, s)
		a.running[s.Name()] = &atomic.Bool{}
	}
	if len(a.sources) == 0 {
		slog.Warn("no input sources available; only gateway status events will flow")
	}
}

// initStatusServer prepares the health/metrics listener. An empty listen
// address disables it.
func (a *App) initStatusServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}

	checkers := []health.Checker{{
		Name: "gateway",
		Check: func(context.Context) error {
			if !a.gateway.Connected() {
				return errors.New("gateway not connected")
			}
			return nil
		},
	}}
	for name, flag := range a.running {
		checkers = append(checkers, health.Checker{
			Name: name,
			Check: func(context.Context) error {
				if !flag.Load() {
					return errors.New("source not running")
				}
				return nil
			},
		})
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{Addr: a.cfg.Server.ListenAddr, Handler: mux}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.httpSrv.Shutdown(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
}

// Run starts the dispatch loop, the agent, all input sources, and the status
// listener, then blocks until ctx is cancelled. A crashing input source is
// logged and does not bring the rest down.
func (a *App) Run(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error { return ignoreCancel(a.engine.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(a.agent.Run(ctx)) })

	for _, s := range a.sources {
		g.Go(func() error {
			flag := a.running[s.Name()]
			flag.Store(true)
			defer flag.Store(false)

			err := s.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("input source stopped", "source", s.Name(), "error", err)
			}
			return nil
		})
	}

	if a.httpSrv != nil {
		g.Go(func() error {
			slog.Info("status listener up", "addr", a.httpSrv.Addr)
			err := a.httpSrv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	if resync := a.cfg.Mapping.ResyncSeconds; resync > 0 {
		g.Go(func() error {
			a.resyncLoop(ctx, time.Duration(resync)*time.Second)
			return nil
		})
	}

	slog.Info("mimik running", "sources", len(a.sources))
	<-ctx.Done()

	// ListenAndServe has no context of its own; stop it here so that
	// cancellation drains every goroutine in the group. The closer's
	// Shutdown call for the non-Run path is a no-op after this.
	if a.httpSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.httpSrv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("status listener shutdown error", "error", err)
		}
		cancel()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// resyncLoop re-runs the trigger-table synchronization periodically so that
// actions added or removed on the remote end are picked up without a restart.
func (a *App) resyncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			table, err := a.sync.Sync(ctx)
			if err != nil {
				slog.Warn("trigger table resync failed, keeping current table", "error", err)
				continue
			}
			a.engine.SetTable(table)
		}
	}
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ignoreCancel filters the expected shutdown error so that errgroup.Wait
// only reports genuine failures.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
