package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledgersync/internal/core"
	"ledgersync/internal/identity"
	"ledgersync/internal/store"
)

const path = "test/entries"

type fakeWriter struct {
	mu        sync.Mutex
	inserts   []core.EntryDraft
	deletes   []string
	insertErr error
	deleteErr error
	block     chan struct{} // if non-nil, Insert waits on it
}

func (f *fakeWriter) Insert(ctx context.Context, _ string, draft core.EntryDraft) (core.LedgerEntry, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return core.LedgerEntry{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return core.LedgerEntry{}, f.insertErr
	}
	f.inserts = append(f.inserts, draft)
	return core.LedgerEntry{
		ID:          "e1",
		Description: draft.Description,
		Amount:      draft.Amount,
		Type:        draft.Type,
		AuthorID:    draft.AuthorID,
		CreatedAt:   time.Now(),
		Seq:         int64(len(f.inserts)),
	}, nil
}

func (f *fakeWriter) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeWriter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts) + len(f.deletes)
}

func newGateway(w *fakeWriter) *Gateway {
	return New(w, identity.Static("session-1"), path, nil)
}

func TestAddValidationPrecedesStore(t *testing.T) {
	cases := []AddRequest{
		{Description: "x", Amount: "0", Type: "income"},
		{Description: "x", Amount: "-5", Type: "expense"},
		{Description: "x", Amount: "", Type: "income"},
		{Description: "x", Amount: "abc", Type: "income"},
		{Description: "x", Amount: "10", Type: "transfer"},
		{Description: "", Amount: "10", Type: "income"},
		{Description: "   ", Amount: "10", Type: "expense"},
	}
	for i, req := range cases {
		w := &fakeWriter{}
		g := newGateway(w)
		if _, err := g.Add(context.Background(), req); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
		if w.calls() != 0 {
			t.Fatalf("case %d: validation failure must not reach the store", i)
		}
	}
}

func TestAddAttachesSessionAuthor(t *testing.T) {
	w := &fakeWriter{}
	g := newGateway(w)

	e, err := g.Add(context.Background(), AddRequest{
		Description: "Paycheck",
		Amount:      "1000",
		Type:        "income",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.AuthorID != "session-1" {
		t.Fatalf("expected author from session, got %q", e.AuthorID)
	}
	if e.Amount.Cents != 100000 || e.Type != core.Income {
		t.Fatalf("unexpected entry %+v", e)
	}
	if g.InFlight() {
		t.Fatalf("in-flight flag not cleared after success")
	}
}

func TestAddWithoutSessionIsAuthError(t *testing.T) {
	w := &fakeWriter{}
	g := New(w, identity.Static(""), path, nil)

	if _, err := g.Add(context.Background(), AddRequest{
		Description: "Paycheck",
		Amount:      "10",
		Type:        "income",
	}); !errors.Is(err, core.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if w.calls() != 0 {
		t.Fatalf("auth failure must not reach the store")
	}
}

func TestAddStoreFailureIsWriteError(t *testing.T) {
	w := &fakeWriter{insertErr: errors.New("permission denied")}
	g := newGateway(w)

	if _, err := g.Add(context.Background(), AddRequest{
		Description: "Paycheck",
		Amount:      "10",
		Type:        "income",
	}); !errors.Is(err, core.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
	if g.InFlight() {
		t.Fatalf("in-flight flag not cleared after failure, retry would be blocked")
	}
}

func TestDeleteMissingEntryIsSuccess(t *testing.T) {
	w := &fakeWriter{deleteErr: store.ErrNotFound}
	g := newGateway(w)

	if err := g.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("expected benign not-found, got %v", err)
	}
}

func TestDeleteValidatesID(t *testing.T) {
	g := newGateway(&fakeWriter{})
	for _, id := range []string{"", "   "} {
		if err := g.Delete(context.Background(), id); !errors.Is(err, core.ErrValidation) {
			t.Fatalf("id %q: expected ErrValidation, got %v", id, err)
		}
	}
}

func TestDeleteStoreFailureIsWriteError(t *testing.T) {
	w := &fakeWriter{deleteErr: errors.New("connection reset")}
	g := newGateway(w)

	if err := g.Delete(context.Background(), "e1"); !errors.Is(err, core.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}

func TestAtMostOneMutationInFlight(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	g := newGateway(w)

	first := make(chan error, 1)
	go func() {
		_, err := g.Add(context.Background(), AddRequest{
			Description: "Paycheck",
			Amount:      "10",
			Type:        "income",
		})
		first <- err
	}()

	// Wait for the first mutation to reach the store.
	deadline := time.Now().Add(2 * time.Second)
	for !g.InFlight() {
		if time.Now().After(deadline) {
			t.Fatalf("first mutation never became in-flight")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := g.Add(context.Background(), AddRequest{
		Description: "Groceries",
		Amount:      "5",
		Type:        "expense",
	}); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight, got %v", err)
	}
	if err := g.Delete(context.Background(), "e1"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight for delete, got %v", err)
	}

	close(w.block)
	if err := <-first; err != nil {
		t.Fatalf("first mutation failed: %v", err)
	}
	if g.InFlight() {
		t.Fatalf("in-flight flag not cleared")
	}
}
