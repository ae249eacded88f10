// Package postgres backs the ledger store with PostgreSQL. Unlike the
// sqlite backend its change feed crosses process boundaries natively:
// mutations NOTIFY on a shared channel and every process LISTENs, so
// multiple engine replicas sharing one database converge without the
// AMQP relay.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

const notifyChannel = "ledger_changes"

type Store struct {
	db       *sql.DB
	hub      *store.Hub
	listener *pq.Listener
	done     chan struct{}
}

func New(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s := &Store{
		db:   db,
		hub:  store.NewHub(),
		done: make(chan struct{}),
	}

	s.listener = pq.NewListener(connStr, time.Second, time.Minute, nil)
	if err := s.listener.Listen(notifyChannel); err != nil {
		s.listener.Close()
		db.Close()
		return nil, fmt.Errorf("listen on %s: %w", notifyChannel, err)
	}
	go s.relayNotifications()

	return s, nil
}

func (s *Store) Close() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// relayNotifications forwards NOTIFY payloads (collection paths) into the
// hub. Our own mutations come back through here too, which keeps local
// and remote changes on a single delivery path.
func (s *Store) relayNotifications() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.listener.Notify:
			if n == nil {
				// Connection was re-established; watchers will catch up
				// on their next re-list.
				continue
			}
			s.hub.Broadcast(store.Change{Path: n.Extra})
		case <-time.After(90 * time.Second):
			go s.listener.Ping()
		}
	}
}

func (s *Store) Insert(ctx context.Context, path string, draft core.EntryDraft) (core.LedgerEntry, error) {
	if err := draft.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	e := core.LedgerEntry{
		ID:          uuid.NewString(),
		Description: draft.Description,
		Amount:      draft.Amount,
		Type:        draft.Type,
		AuthorID:    draft.AuthorID,
		CreatedAt:   time.Now().UTC(),
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO entries (id, path, description, amount_cents, entry_type, author_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		e.ID, path, e.Description, e.Amount.Cents, string(e.Type), e.AuthorID, e.CreatedAt).Scan(&e.Seq)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("insert entry: %w", err)
	}

	if _, err := bumpRevision(ctx, tx, path); err != nil {
		return core.LedgerEntry{}, err
	}
	if err := notify(ctx, tx, path); err != nil {
		return core.LedgerEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("commit insert: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", e.ID,
		"path", path,
		"type", e.Type,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (s *Store) Delete(ctx context.Context, path, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE path = $1 AND id = $2`, path, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if _, err := bumpRevision(ctx, tx, path); err != nil {
		return err
	}
	if err := notify(ctx, tx, path); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id, "path", path)
	return nil
}

func (s *Store) List(ctx context.Context, path string) (core.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("begin list: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM revisions WHERE path = $1`, path).Scan(&rev)
	if err != nil && err != sql.ErrNoRows {
		return core.Snapshot{}, fmt.Errorf("read revision: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT seq, id, description, amount_cents, entry_type, author_id, created_at
		 FROM entries WHERE path = $1
		 ORDER BY created_at DESC, seq DESC, id`, path)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.LedgerEntry, 0)
	for rows.Next() {
		var (
			e         core.LedgerEntry
			entryType string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Description, &e.Amount.Cents,
			&entryType, &e.AuthorID, &e.CreatedAt); err != nil {
			return core.Snapshot{}, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = core.EntryType(entryType)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("list entries: %w", err)
	}

	return core.Snapshot{Revision: rev, Entries: entries}, nil
}

func (s *Store) Watch(_ context.Context, path string) (<-chan store.Change, func(), error) {
	ch, cancel := s.hub.Subscribe(path)
	return ch, cancel, nil
}

func bumpRevision(ctx context.Context, tx *sql.Tx, path string) (int64, error) {
	var rev int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO revisions (path, revision) VALUES ($1, 1)
		 ON CONFLICT (path) DO UPDATE SET revision = revisions.revision + 1
		 RETURNING revision`, path).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return rev, nil
}

// notify queues a NOTIFY that fires when the surrounding tx commits.
func notify(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		path TEXT NOT NULL,
		description TEXT NOT NULL,
		amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
		entry_type TEXT NOT NULL CHECK (entry_type IN ('income', 'expense')),
		author_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_path_order ON entries (path, created_at DESC, seq DESC);
	CREATE TABLE IF NOT EXISTS revisions (
		path TEXT PRIMARY KEY,
		revision BIGINT NOT NULL DEFAULT 0
	);`

	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return nil
}

var _ store.Store = (*Store)(nil)
