package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ledgersync/internal/core"
	"ledgersync/internal/store"
)

// Store is the durable ledger store backend on SQLite. Change hints are
// delivered through an in-process hub; deployments with multiple
// processes layer the AMQP relay on top.
type Store struct {
	db  *sql.DB
	hub *store.Hub
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, hub: store.NewHub()}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
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

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (id, path, description, amount_cents, entry_type, author_id, created_at_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, path, e.Description, e.Amount.Cents, string(e.Type), e.AuthorID, e.CreatedAt.UnixNano())
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("read entry seq: %w", err)
	}
	e.Seq = seq

	rev, err := bumpRevision(ctx, tx, path)
	if err != nil {
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

	s.hub.Broadcast(store.Change{Path: path, Revision: rev})
	return e, nil
}

func (s *Store) Delete(ctx context.Context, path, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE path = ? AND id = ?`, path, id)
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

	rev, err := bumpRevision(ctx, tx, path)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Entry deleted", "id", id, "path", path)

	s.hub.Broadcast(store.Change{Path: path, Revision: rev})
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
		`SELECT revision FROM revisions WHERE path = ?`, path).Scan(&rev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, fmt.Errorf("read revision: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT seq, id, description, amount_cents, entry_type, author_id, created_at_ns
		 FROM entries WHERE path = ?
		 ORDER BY created_at_ns DESC, seq DESC, id`, path)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]core.LedgerEntry, 0)
	for rows.Next() {
		var (
			e         core.LedgerEntry
			entryType string
			createdNs int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Description, &e.Amount.Cents,
			&entryType, &e.AuthorID, &createdNs); err != nil {
			return core.Snapshot{}, fmt.Errorf("scan entry: %w", err)
		}
		e.Type = core.EntryType(entryType)
		e.CreatedAt = time.Unix(0, createdNs).UTC()
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
		`INSERT INTO revisions (path, revision) VALUES (?, 1)
		 ON CONFLICT(path) DO UPDATE SET revision = revision + 1
		 RETURNING revision`, path).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return rev, nil
}

var _ store.Store = (*Store)(nil)
