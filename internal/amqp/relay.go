package amqp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

// Bus is the slice of the AMQP client the relay needs.
type Bus interface {
	PublishChange(ctx context.Context, event *ChangeEvent) error
	ConsumeChanges(ctx context.Context, handler func(*ChangeEvent)) error
}

// RelayStore decorates a ledger store so change visibility crosses
// process boundaries: successful mutations publish a ChangeEvent, and
// events published by other processes feed this process's watchers.
// Backends with a native cross-process feed (postgres) don't need it.
type RelayStore struct {
	store.Store
	bus    Bus
	origin string
	hub    *store.Hub
}

func NewRelayStore(inner store.Store, bus Bus) *RelayStore {
	return &RelayStore{
		Store:  inner,
		bus:    bus,
		origin: uuid.NewString(),
		hub:    store.NewHub(),
	}
}

// Run consumes remote change events until ctx is cancelled. Events this
// process published itself are dropped; the inner store has already
// notified its local watchers.
func (r *RelayStore) Run(ctx context.Context) error {
	return r.bus.ConsumeChanges(ctx, func(ev *ChangeEvent) {
		if ev.Origin == r.origin {
			return
		}
		r.hub.Broadcast(store.Change{Path: ev.Path})
	})
}

func (r *RelayStore) Insert(ctx context.Context, path string, draft core.EntryDraft) (core.LedgerEntry, error) {
	e, err := r.Store.Insert(ctx, path, draft)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	r.publish(ctx, path)
	return e, nil
}

func (r *RelayStore) Delete(ctx context.Context, path, id string) error {
	if err := r.Store.Delete(ctx, path, id); err != nil {
		return err
	}
	r.publish(ctx, path)
	return nil
}

// publish is best-effort: the local write already succeeded, and remote
// processes catch up on the next event either way.
func (r *RelayStore) publish(ctx context.Context, path string) {
	if err := r.bus.PublishChange(ctx, NewChangeEvent(path, r.origin)); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event",
			"path", path,
			"error", err)
	}
}

// Watch merges the inner store's local hints with remote relay hints
// into one coalesced stream.
func (r *RelayStore) Watch(ctx context.Context, path string) (<-chan store.Change, func(), error) {
	innerCh, innerStop, err := r.Store.Watch(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	remoteCh, remoteStop := r.hub.Subscribe(path)

	out := make(chan store.Change, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case c, ok := <-innerCh:
				if !ok {
					return
				}
				forward(out, c)
			case c, ok := <-remoteCh:
				if !ok {
					return
				}
				forward(out, c)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			innerStop()
			remoteStop()
			close(done)
		})
	}
	return out, stop, nil
}

// forward places the newest hint without ever blocking the merge loop.
func forward(out chan store.Change, c store.Change) {
	select {
	case out <- c:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- c:
		default:
		}
	}
}
