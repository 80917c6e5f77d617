// Package app wires all Assessly subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithRelay, WithMetrics, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/assessly-ai/assessly/internal/config"
	"github.com/assessly-ai/assessly/internal/gateway"
	"github.com/assessly-ai/assessly/internal/health"
	"github.com/assessly-ai/assessly/internal/observe"
	"github.com/assessly-ai/assessly/internal/relay"
	"github.com/assessly-ai/assessly/internal/session"
	"github.com/assessly-ai/assessly/pkg/provider/eval"
	"github.com/assessly-ai/assessly/pkg/provider/live"
	"golang.org/x/sync/errgroup"
)

// shutdownGrace bounds graceful shutdown: live interviews are stopped and the
// HTTP server drained within this window.
const shutdownGrace = 15 * time.Second

// Providers holds one interface value per provider slot. Populated by main.go
// via the config registry. Both slots are required.
type Providers struct {
	Live live.Provider
	Eval eval.Provider
}

// pinger is implemented by relays that can probe their upstream. The Telegram
// relay satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	relay    session.Relay
	metrics  *observe.Metrics
	health   *health.Handler
	gateway  *gateway.Server
	server   *http.Server
	listener net.Listener
	watcher  *config.Watcher
	logLevel *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRelay injects a delivery relay instead of creating one from config.
func WithRelay(r session.Relay) Option {
	return func(a *App) { a.relay = r }
}

// WithMetrics injects a metrics instance instead of using the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the App the level var backing the process logger so
// config hot reload can adjust verbosity.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithListener serves on the given listener instead of binding
// server.listen_addr. Tests use this to grab an ephemeral port.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if providers == nil || providers.Live == nil {
		return nil, fmt.Errorf("app: a live provider is required")
	}
	if providers.Eval == nil {
		return nil, fmt.Errorf("app: an eval provider is required")
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if a.relay == nil && cfg.Relay.Telegram.Enabled() {
		tg, err := relay.New(relay.Config{
			Token:   cfg.Relay.Telegram.BotToken,
			ChatID:  cfg.Relay.Telegram.ChatID,
			BaseURL: cfg.Relay.Telegram.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init relay: %w", err)
		}
		a.relay = tg
	}

	checkers := []health.Checker{
		{Name: "live_provider", Check: a.checkLiveProvider},
	}
	if p, ok := a.relay.(pinger); ok {
		checkers = append(checkers, health.Checker{Name: "relay", Check: p.Ping})
	}
	a.health = health.New(checkers...)

	a.gateway = gateway.New(gatewayConfig(cfg), providers.Live, providers.Eval, a.relay, a.metrics, a.health)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// gatewayConfig maps file configuration onto the gateway's session settings.
func gatewayConfig(cfg *config.Config) gateway.Config {
	return gateway.Config{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Instructions:     cfg.Interview.Instructions,
		Voice:            cfg.Interview.Voice,
		Duration:         time.Duration(cfg.Interview.DurationSeconds) * time.Second,
		SnapshotInterval: time.Duration(cfg.Interview.SnapshotIntervalSeconds) * time.Second,
	}
}

// checkLiveProvider verifies the configured voice and duration against the
// live provider's advertised capabilities.
func (a *App) checkLiveProvider(context.Context) error {
	caps := a.providers.Live.Capabilities()

	voice := a.cfg.Interview.Voice
	if len(caps.Voices) > 0 && !slices.Contains(caps.Voices, voice) {
		return fmt.Errorf("voice %q is not offered by the live provider", voice)
	}

	duration := time.Duration(a.cfg.Interview.DurationSeconds) * time.Second
	if caps.MaxSessionDuration > 0 && duration > caps.MaxSessionDuration {
		return fmt.Errorf("interview duration %s exceeds the provider session limit %s",
			duration, caps.MaxSessionDuration)
	}
	return nil
}

// WatchConfig starts polling path for configuration changes. Log level and
// interview settings apply live; everything else needs a restart.
func (a *App) WatchConfig(path string) error {
	w, err := config.NewWatcher(path, a.applyConfigChange)
	if err != nil {
		return fmt.Errorf("app: watch config: %w", err)
	}
	a.watcher = w
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// applyConfigChange reacts to a reloaded configuration file.
func (a *App) applyConfigChange(old, updated *config.Config) {
	d := config.Diff(old, updated)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "level", d.NewLogLevel)
	}
	if d.InterviewChanged {
		a.gateway.SetConfig(gatewayConfig(updated))
		slog.Info("interview settings updated", "note", "running sessions keep their settings")
	}
	if d.RelayChanged {
		slog.Warn("relay settings changed in config file; restart to apply")
	}

	a.cfg = updated
}

// slogLevel maps a config log level onto slog.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Gateway returns the HTTP gateway, mainly for tests.
func (a *App) Gateway() *gateway.Server { return a.gateway }

// Run serves HTTP until ctx is cancelled, then stops live interviews and
// drains the server. Returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.serve()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := a.gateway.Manager().StopAll(shutdownCtx); err != nil {
			slog.Warn("stopping live sessions", "err", err)
		}
		return a.server.Shutdown(shutdownCtx)
	})

	slog.Info("app running", "addr", a.addr(), "relay", a.relay != nil)
	return g.Wait()
}

func (a *App) serve() error {
	tls := a.cfg.Server.TLS

	if a.listener != nil {
		if tls != nil {
			return a.server.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
		}
		return a.server.Serve(a.listener)
	}
	if tls != nil {
		return a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	}
	return a.server.ListenAndServe()
}

func (a *App) addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.cfg.Server.ListenAddr
}

// Shutdown tears down the remaining subsystems in order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
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
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
