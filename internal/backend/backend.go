// Package backend builds the configured ledger store and, when AMQP is
// configured, wraps it in the cross-process change relay.
package backend

import (
	"ledgersync/internal/amqp"
	"ledgersync/internal/store"
)

// Result carries the assembled store and its lifecycle hooks.
type Result struct {
	Store store.Store

	// Relay is non-nil when an AMQP relay wraps the store; its Run
	// loop must be started by the caller.
	Relay *amqp.RelayStore

	// Cleanup releases backend resources. Never nil.
	Cleanup func() error
}
