package backend

import (
	"fmt"

	"ledgersync/internal/amqp"
	"ledgersync/internal/config"
	"ledgersync/internal/core"
	"ledgersync/internal/log"
	"ledgersync/internal/store"
	"ledgersync/internal/store/memory"
	"ledgersync/internal/store/postgres"
	"ledgersync/internal/store/sqlite"
)

// Build assembles the store selected by cfg.DataBackend. Failing to
// reach the backend is a configuration problem, not a runtime write
// failure.
func Build(cfg *config.Config, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStore)

	var (
		st      store.Store
		cleanup func() error
		err     error
	)
	switch cfg.DataBackend {
	case config.BackendMemory:
		st = memory.New()
		cleanup = st.Close
		logger.Info("Initialized memory backend")

	case config.BackendSQLite:
		st, err = sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("%w: sqlite backend: %v", core.ErrConfiguration, err)
		}
		cleanup = st.Close
		logger.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)

	case config.BackendPostgres:
		st, err = postgres.New(cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("%w: postgres backend: %v", core.ErrConfiguration, err)
		}
		cleanup = st.Close
		logger.Info("Initialized postgres backend")

		// Postgres carries its own cross-process feed over
		// LISTEN/NOTIFY; no relay on top.
		return &Result{Store: st, Cleanup: cleanup}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported data backend %q", core.ErrConfiguration, cfg.DataBackend)
	}

	if cfg.AMQPURL == "" {
		return &Result{Store: st, Cleanup: cleanup}, nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		// The local store still works; other processes just won't see
		// changes until they re-list.
		logger.Warn("Failed to initialize AMQP relay, continuing without it", "error", err)
		return &Result{Store: st, Cleanup: cleanup}, nil
	}
	logger.Info("Initialized AMQP relay", "exchange", cfg.AMQPExchange)

	relay := amqp.NewRelayStore(st, client)
	return &Result{
		Store: relay,
		Relay: relay,
		Cleanup: func() error {
			err := client.Close()
			if cerr := cleanup(); cerr != nil && err == nil {
				err = cerr
			}
			return err
		},
	}, nil
}
