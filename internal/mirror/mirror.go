// Package mirror maintains a locally consistent ordered copy of a remote
// ledger collection and streams it to consumers as snapshots.
package mirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"ledgersync/internal/core"
	"ledgersync/internal/log"
	"ledgersync/internal/store"
)

// Source is the slice of the remote store the mirror consumes.
type Source interface {
	store.Lister
	store.Watcher
}

type Mirror struct {
	src    Source
	logger *log.Logger
}

func New(src Source, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Mirror{src: src, logger: logger.WithComponent("mirror")}
}

// Subscribe establishes a durable subscription to the collection at
// path. The subscription owns one goroutine that re-lists the
// collection on every change hint; all snapshot state is confined to
// that loop.
func (m *Mirror) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	changes, stop, err := m.src.Watch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: watch %s: %v", core.ErrSubscription, path, err)
	}

	sub := &Subscription{
		updates: make(chan core.Snapshot, 1),
		done:    make(chan struct{}),
		stop:    stop,
	}
	go sub.run(ctx, m, path, changes)
	return sub, nil
}

// Subscription is one live view of a collection. Updates delivers
// snapshots in non-decreasing revision order; rapid remote changes may
// coalesce into a single delivered snapshot reflecting only the latest
// state.
type Subscription struct {
	updates chan core.Snapshot
	done    chan struct{}
	stop    func()
	once    sync.Once

	current atomic.Pointer[core.Snapshot]
	lastRev int64 // owned by the run goroutine

	mu  sync.Mutex
	err error
}

func (s *Subscription) run(ctx context.Context, m *Mirror, path string, changes <-chan store.Change) {
	defer close(s.updates)
	defer s.stop()

	if err := s.refresh(ctx, m, path); err != nil {
		s.fail(m, path, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case _, ok := <-changes:
			if !ok {
				s.fail(m, path, fmt.Errorf("%w: change feed closed", core.ErrSubscription))
				return
			}
			if err := s.refresh(ctx, m, path); err != nil {
				s.fail(m, path, err)
				return
			}
		}
	}
}

// refresh re-lists the collection and publishes the snapshot unless it
// is not newer than one already delivered.
func (s *Subscription) refresh(ctx context.Context, m *Mirror, path string) error {
	snap, err := m.src.List(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: list %s: %v", core.ErrSubscription, path, err)
	}
	if s.current.Load() != nil && snap.Revision <= s.lastRev {
		return nil
	}
	s.lastRev = snap.Revision
	s.current.Store(&snap)

	// Replace an undelivered snapshot with the newer one.
	for {
		select {
		case s.updates <- snap:
			return nil
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// fail marks the subscription terminally broken. No automatic retry:
// recovery means subscribing again.
func (s *Subscription) fail(m *Mirror, path string, err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	m.logger.Error("Subscription failed", "path", path, "error", err)
}

// Updates streams snapshots. The channel closes when the subscription
// ends, whether through Unsubscribe, context cancellation, or terminal
// failure; check Err to tell failure apart.
func (s *Subscription) Updates() <-chan core.Snapshot {
	return s.updates
}

// Current returns the latest observed snapshot. ok is false while the
// subscription is still loading: no data yet is not the same as zero
// entries.
func (s *Subscription) Current() (core.Snapshot, bool) {
	p := s.current.Load()
	if p == nil {
		return core.Snapshot{}, false
	}
	return *p, true
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe releases the underlying watch. Idempotent; the resource
// is released on every exit path, including ones that never call this.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { close(s.done) })
}
