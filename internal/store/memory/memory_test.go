package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

const path = "test/entries"

func draft(desc string, typ core.EntryType, cents int64) core.EntryDraft {
	return core.EntryDraft{Description: desc, Amount: core.Money{Cents: cents}, Type: typ}
}

func TestInsertAssignsIdentityAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := s.Insert(ctx, path, draft("Paycheck", core.Income, 100000))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == "" || first.Seq == 0 || first.CreatedAt.IsZero() {
		t.Fatalf("store did not assign identity: %+v", first)
	}

	second, err := s.Insert(ctx, path, draft("Groceries", core.Expense, 15050))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("sequence not increasing: %d then %d", first.Seq, second.Seq)
	}

	snap, err := s.List(ctx, path)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if snap.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", snap.Revision)
	}
	if len(snap.Entries) != 2 || snap.Entries[0].Description != "Groceries" {
		t.Fatalf("expected newest first, got %+v", snap.Entries)
	}
}

func TestInsertRejectsInvalidDraft(t *testing.T) {
	s := New()
	if _, err := s.Insert(context.Background(), path, draft("x", core.Income, 0)); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	snap, _ := s.List(context.Background(), path)
	if len(snap.Entries) != 0 || snap.Revision != 0 {
		t.Fatalf("rejected insert must leave no state, got %+v", snap)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	e, err := s.Insert(ctx, path, draft("Paycheck", core.Income, 100))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Delete(ctx, path, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Second delete reports a benign not-found, never a crash.
	if err := s.Delete(ctx, path, e.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	snap, _ := s.List(ctx, path)
	if len(snap.Entries) != 0 {
		t.Fatalf("entry still visible after delete")
	}
	if snap.Revision != 2 {
		t.Fatalf("not-found delete must not bump revision, got %d", snap.Revision)
	}
}

func TestWatchNotifies(t *testing.T) {
	s := New()
	ctx := context.Background()

	ch, stop, err := s.Watch(ctx, path)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer stop()

	if _, err := s.Insert(ctx, path, draft("Paycheck", core.Income, 100)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case c := <-ch:
		if c.Path != path || c.Revision != 1 {
			t.Fatalf("unexpected change %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatalf("no change delivered")
	}

	// stop is idempotent
	stop()
	stop()
}

func TestWatchIsScopedToPath(t *testing.T) {
	s := New()
	ctx := context.Background()

	ch, stop, _ := s.Watch(ctx, "prod/entries")
	defer stop()

	if _, err := s.Insert(ctx, "staging/entries", draft("Paycheck", core.Income, 100)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	select {
	case c := <-ch:
		t.Fatalf("change leaked across deployments: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConcurrentAddsConverge(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(ctx, path, draft("Paycheck", core.Income, 10000)); err != nil {
				t.Errorf("insert: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := s.List(ctx, path)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	agg := core.Derive(snap)
	if agg.TotalIncome.Cents != 20000 {
		t.Fatalf("expected converged total 20000, got %d", agg.TotalIncome.Cents)
	}
}
