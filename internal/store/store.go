// Package store defines the remote ledger store boundary: ordered
// listing, insert, delete by id, and coalesced change notification.
package store

import (
	"context"
	"errors"

	"ledgersync/internal/core"
)

var ErrNotFound = errors.New("entry not found")

// Change signals that the collection at Path has moved to Revision.
// A Change is a hint, not a diff; consumers re-list the collection.
type Change struct {
	Path     string `json:"path"`
	Revision int64  `json:"revision"`
}

// Ports for ledger store backends.
type (
	Inserter interface {
		Insert(ctx context.Context, path string, draft core.EntryDraft) (core.LedgerEntry, error)
	}

	Deleter interface {
		// Delete removes the entry with the given id. Unknown ids return
		// ErrNotFound; callers decide whether that outcome is benign.
		Delete(ctx context.Context, path, id string) error
	}

	Lister interface {
		// List returns the full current set, ordered newest first,
		// together with the collection revision it reflects.
		List(ctx context.Context, path string) (core.Snapshot, error)
	}

	// Watcher delivers change hints for a collection. The returned stop
	// function releases the watch and is safe to call more than once.
	Watcher interface {
		Watch(ctx context.Context, path string) (<-chan Change, func(), error)
	}

	Store interface {
		Inserter
		Deleter
		Lister
		Watcher
		Close() error
	}
)
