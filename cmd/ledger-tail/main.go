// ledger-tail follows a ledger collection and logs the aggregate
// derived from every delivered snapshot. Pointed at the same backend as
// a running ledgerd, it demonstrates that independent processes
// converge on the same totals.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ledgersync/internal/backend"
	"ledgersync/internal/config"
	"ledgersync/internal/core"
	"ledgersync/internal/log"
	"ledgersync/internal/mirror"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "ledger-tail"})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := backend.Build(cfg, logger)
	if err != nil {
		logger.Error("Failed to build backend", "error", err)
		os.Exit(1)
	}
	defer func() { _ = b.Cleanup() }()

	sub, err := mirror.New(b.Store, logger).Subscribe(ctx, cfg.CollectionPath())
	if err != nil {
		logger.Error("Failed to subscribe", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	logger.Info("Tailing ledger",
		"backend", cfg.DataBackend,
		"path", cfg.CollectionPath())

	g, ctx := errgroup.WithContext(ctx)
	if b.Relay != nil {
		g.Go(func() error {
			err := b.Relay.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		var deriver core.Deriver
		for {
			select {
			case <-ctx.Done():
				return nil
			case snap, ok := <-sub.Updates():
				if !ok {
					return sub.Err()
				}
				agg := deriver.Derive(snap)
				logger.Info("Ledger state",
					"revision", snap.Revision,
					"entries", len(snap.Entries),
					"income", agg.TotalIncome.String(),
					"expenses", agg.TotalExpenses.String(),
					"balance", agg.Balance.String())
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Tail stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Tail stopped")
}
