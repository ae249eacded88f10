package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

// Store is an in-memory ledger store for tests and local development.
// Ordering and revision semantics match the durable backends.
type Store struct {
	mu        sync.Mutex
	seq       int64
	revisions map[string]int64
	entries   map[string][]core.LedgerEntry
	hub       *store.Hub
	now       func() time.Time
}

func New() *Store {
	return &Store{
		revisions: make(map[string]int64),
		entries:   make(map[string][]core.LedgerEntry),
		hub:       store.NewHub(),
		now:       time.Now,
	}
}

func (s *Store) Insert(_ context.Context, path string, draft core.EntryDraft) (core.LedgerEntry, error) {
	if err := draft.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	s.mu.Lock()
	s.seq++
	e := core.LedgerEntry{
		ID:          uuid.NewString(),
		Description: draft.Description,
		Amount:      draft.Amount,
		Type:        draft.Type,
		AuthorID:    draft.AuthorID,
		CreatedAt:   s.now().UTC(),
		Seq:         s.seq,
	}
	s.entries[path] = append(s.entries[path], e)
	s.revisions[path]++
	rev := s.revisions[path]
	s.mu.Unlock()

	s.hub.Broadcast(store.Change{Path: path, Revision: rev})
	return e, nil
}

func (s *Store) Delete(_ context.Context, path, id string) error {
	s.mu.Lock()
	entries := s.entries[path]
	idx := -1
	for i, e := range entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	s.entries[path] = append(entries[:idx], entries[idx+1:]...)
	s.revisions[path]++
	rev := s.revisions[path]
	s.mu.Unlock()

	s.hub.Broadcast(store.Change{Path: path, Revision: rev})
	return nil
}

func (s *Store) List(_ context.Context, path string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.LedgerEntry, len(s.entries[path]))
	copy(out, s.entries[path])
	core.SortEntries(out)
	return core.Snapshot{Revision: s.revisions[path], Entries: out}, nil
}

func (s *Store) Watch(_ context.Context, path string) (<-chan store.Change, func(), error) {
	ch, cancel := s.hub.Subscribe(path)
	return ch, cancel, nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
