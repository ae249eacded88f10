package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledgersync/internal/core"
	"ledgersync/internal/store/memory"
)

const path = "test/entries"

type fakeBus struct {
	mu        sync.Mutex
	published []*ChangeEvent
	incoming  chan *ChangeEvent
	fail      bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{incoming: make(chan *ChangeEvent, 8)}
}

func (b *fakeBus) PublishChange(_ context.Context, ev *ChangeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, ev)
	return nil
}

func (b *fakeBus) ConsumeChanges(ctx context.Context, handler func(*ChangeEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.incoming:
			handler(ev)
		}
	}
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func draft() core.EntryDraft {
	return core.EntryDraft{Description: "Paycheck", Amount: core.Money{Cents: 100}, Type: core.Income}
}

func TestRelayPublishesOnMutation(t *testing.T) {
	bus := newFakeBus()
	r := NewRelayStore(memory.New(), bus)
	ctx := context.Background()

	e, err := r.Insert(ctx, path, draft())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if bus.count() != 1 {
		t.Fatalf("expected 1 published event, got %d", bus.count())
	}
	if got := bus.published[0]; got.Path != path || got.Origin != r.origin {
		t.Fatalf("unexpected event %+v", got)
	}

	if err := r.Delete(ctx, path, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if bus.count() != 2 {
		t.Fatalf("expected 2 published events, got %d", bus.count())
	}
}

func TestRelayPublishFailureDoesNotFailMutation(t *testing.T) {
	bus := newFakeBus()
	bus.fail = true
	r := NewRelayStore(memory.New(), bus)

	if _, err := r.Insert(context.Background(), path, draft()); err != nil {
		t.Fatalf("insert must survive a broker outage, got %v", err)
	}
}

func TestRelayForwardsRemoteEventsAndDropsOwnEcho(t *testing.T) {
	bus := newFakeBus()
	r := NewRelayStore(memory.New(), bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	ch, stop, err := r.Watch(ctx, path)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stop()

	// Own echo is dropped.
	bus.incoming <- NewChangeEvent(path, r.origin)
	select {
	case c := <-ch:
		t.Fatalf("own echo must not reach watchers: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}

	// Remote event reaches the watcher.
	bus.incoming <- NewChangeEvent(path, "other-process")
	select {
	case c := <-ch:
		if c.Path != path {
			t.Fatalf("unexpected change %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatalf("remote change never delivered")
	}

	// stop is idempotent.
	stop()
	stop()
}
