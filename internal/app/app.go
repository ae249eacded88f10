// Package app is the composition root: it wires the configured store,
// the session provider, the mirror subscription, the mutation gateway
// and the HTTP boundary into one runnable engine.
package app

import (
	"context"
	"errors"
	nethttp "net/http"

	"golang.org/x/sync/errgroup"

	"ledgersync/internal/backend"
	"ledgersync/internal/config"
	"ledgersync/internal/gateway"
	"ledgersync/internal/http"
	"ledgersync/internal/identity"
	"ledgersync/internal/log"
	"ledgersync/internal/mirror"
)

// App holds every wired component explicitly; nothing reaches for
// globals.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Sessions identity.Provider
	Gateway  *gateway.Gateway
	Sub      *mirror.Subscription
	Server   *http.Server

	backend *backend.Result
}

// New validates the configuration and assembles the engine. The
// subscription it opens lives until ctx ends or Close is called.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b, err := backend.Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	var sessions identity.Provider
	if cfg.SessionToken != "" {
		sessions = identity.Static(cfg.SessionToken)
	} else {
		sessions = identity.NewAnonymous()
	}

	path := cfg.CollectionPath()
	sub, err := mirror.New(b.Store, logger).Subscribe(ctx, path)
	if err != nil {
		_ = b.Cleanup()
		return nil, err
	}

	gw := gateway.New(b.Store, sessions, path, logger)
	srv := http.NewServer(":"+cfg.Port, gw, sub, logger)

	logger.WithComponent(log.ComponentApp).Info("Engine assembled",
		"backend", cfg.DataBackend,
		"path", path,
		"relay", b.Relay != nil)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Gateway:  gw,
		Sub:      sub,
		Server:   srv,
		backend:  b,
	}, nil
}

// Run serves HTTP and pumps the relay and stream loops until ctx ends
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.backend.Relay != nil {
		g.Go(func() error {
			err := a.backend.Relay.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error { return a.Server.Run(ctx) })

	g.Go(func() error {
		err := a.Server.ListenAndServe()
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the subscription and the backend. Safe after Run has
// returned.
func (a *App) Close() error {
	a.Sub.Unsubscribe()
	return a.backend.Cleanup()
}
