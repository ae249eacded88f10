// Package gateway mediates entry creation and deletion against the
// remote ledger store. It validates before any network interaction and
// enforces at most one in-flight mutation per session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"ledgersync/internal/core"
	"ledgersync/internal/identity"
	"ledgersync/internal/log"
	"ledgersync/internal/store"
)

// ErrMutationInFlight rejects a mutation while a previous one from this
// session has not been acknowledged by the store yet.
var ErrMutationInFlight = errors.New("another mutation is in flight")

// Writer is the mutating slice of the store the gateway needs.
type Writer interface {
	store.Inserter
	store.Deleter
}

// AddRequest carries raw form input; nothing in it is trusted until Add
// has validated it.
type AddRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
}

type Gateway struct {
	store    Writer
	sessions identity.Provider
	path     string
	logger   *log.Logger
	busy     atomic.Bool
}

func New(st Writer, sessions identity.Provider, path string, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Gateway{
		store:    st,
		sessions: sessions,
		path:     path,
		logger:   logger.WithComponent("gateway"),
	}
}

// InFlight reports whether a mutation is awaiting acknowledgement.
// Callers use it to disable new submissions; it is a throttle, not a
// correctness requirement.
func (g *Gateway) InFlight() bool {
	return g.busy.Load()
}

// Add validates the request, resolves the author session, and inserts
// the entry. The caller observes the new entry through the mirror's
// next snapshot; no local state is updated optimistically.
func (g *Gateway) Add(ctx context.Context, req AddRequest) (core.LedgerEntry, error) {
	draft, err := validate(req)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	if !g.busy.CompareAndSwap(false, true) {
		return core.LedgerEntry{}, ErrMutationInFlight
	}
	defer g.busy.Store(false)

	author, err := g.sessions.Session(ctx)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	draft.AuthorID = author

	e, err := g.store.Insert(ctx, g.path, draft)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("%w: add entry: %v", core.ErrWrite, err)
	}

	g.logger.Info("Entry added",
		"id", e.ID,
		"type", e.Type,
		"amount", e.Amount.String())
	return e, nil
}

// Delete removes the entry with the given id. Deleting an entry that is
// already gone is success: another session may have raced us to it.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %v", core.ErrValidation, core.ErrEmptyID)
	}

	if !g.busy.CompareAndSwap(false, true) {
		return ErrMutationInFlight
	}
	defer g.busy.Store(false)

	err := g.store.Delete(ctx, g.path, id)
	switch {
	case err == nil:
		g.logger.Info("Entry deleted", "id", id)
	case errors.Is(err, store.ErrNotFound):
		g.logger.Debug("Delete of missing entry treated as success", "id", id)
	default:
		return fmt.Errorf("%w: delete entry %s: %v", core.ErrWrite, id, err)
	}
	return nil
}

func validate(req AddRequest) (core.EntryDraft, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.EntryDraft{}, fmt.Errorf("%w: amount %q: %v", core.ErrValidation, req.Amount, err)
	}
	typ, err := core.ParseEntryType(req.Type)
	if err != nil {
		return core.EntryDraft{}, fmt.Errorf("%w: type %q: %v", core.ErrValidation, req.Type, err)
	}
	draft := core.EntryDraft{
		Description: strings.TrimSpace(req.Description),
		Amount:      amount,
		Type:        typ,
	}
	if err := draft.Validate(); err != nil {
		return core.EntryDraft{}, fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return draft, nil
}
