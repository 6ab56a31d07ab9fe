// Package offline persists CRDT document state between sessions: a
// binary snapshot plus a queue of updates awaiting sync, both in one
// SQLite file at a known path. The store assumes a single writer per
// path; concurrent writers lead to undefined state.
package offline

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rtmx-ai/rtmx/internal/codec"
	"github.com/rtmx-ai/rtmx/internal/crdt"
	"github.com/rtmx-ai/rtmx/internal/logging"
)

// Store manages the offline snapshot and pending-update queue.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens an offline store at the given path, creating
// parent directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize offline store schema: %w", err)
	}
	logging.Get(logging.CategorySync).Debugw("opened offline store", "path", path)
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	schema := `
	-- Single-row document snapshot
	CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state BLOB NOT NULL,
		saved_at DATETIME NOT NULL
	);

	-- Updates queued while offline, drained in enqueue order
	CREATE TABLE IF NOT EXISTS pending_updates (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		payload BLOB NOT NULL,
		queued_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// SaveState writes the document's full state as the snapshot, replacing
// any previous one.
func (s *Store) SaveState(doc *crdt.Document) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO snapshot (id, state, saved_at) VALUES (1, ?, ?)`,
		doc.EncodeState(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadState reads the snapshot bytes. ok is false when no snapshot has
// been saved yet.
func (s *Store) LoadState() (state []byte, ok bool, err error) {
	row := s.db.QueryRow(`SELECT state FROM snapshot WHERE id = 1`)
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return state, true, nil
}

// LoadDocument restores a document from the snapshot. ok is false when
// no snapshot exists.
func (s *Store) LoadDocument(replicaID string) (*crdt.Document, bool, error) {
	state, ok, err := s.LoadState()
	if err != nil || !ok {
		return nil, false, err
	}
	doc := crdt.NewDocument(replicaID)
	if err := doc.ApplyUpdate(state); err != nil {
		return nil, false, fmt.Errorf("snapshot is not applicable: %w", err)
	}
	return doc, true, nil
}

// =============================================================================
// PENDING QUEUE
// =============================================================================

// QueueUpdate appends an update for later synchronization.
func (s *Store) QueueUpdate(payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO pending_updates (payload, queued_at) VALUES (?, ?)`,
		payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to queue update: %w", err)
	}
	return nil
}

// PendingUpdates returns queued updates in enqueue order.
func (s *Store) PendingUpdates() ([][]byte, error) {
	rows, err := s.db.Query(`SELECT payload FROM pending_updates ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending updates: %w", err)
	}
	defer rows.Close()

	var updates [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan pending update: %w", err)
		}
		updates = append(updates, payload)
	}
	return updates, rows.Err()
}

// ClearPending empties the queue.
func (s *Store) ClearPending() error {
	if _, err := s.db.Exec(`DELETE FROM pending_updates`); err != nil {
		return fmt.Errorf("failed to clear pending updates: %w", err)
	}
	return nil
}

// ApplyPending applies every queued update to the document and returns
// the number applied. The queue is left intact; callers clear it once the
// updates are also acknowledged remotely.
func (s *Store) ApplyPending(doc *crdt.Document) (int, error) {
	updates, err := s.PendingUpdates()
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, payload := range updates {
		if err := doc.ApplyUpdate(payload); err != nil {
			return applied, err
		}
		applied++
	}
	logging.Get(logging.CategorySync).Debugw("applied pending updates", "count", applied)
	return applied, nil
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// SyncFromCSV is the canonical bootstrap: restore the snapshot and apply
// pending updates when a snapshot exists, otherwise build a fresh
// document from the tabular file.
func (s *Store) SyncFromCSV(csvPath, replicaID string) (*crdt.Document, error) {
	doc, ok, err := s.LoadDocument(replicaID)
	if err != nil {
		return nil, err
	}
	if ok {
		if _, err := s.ApplyPending(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	db, err := codec.LoadDatabase(csvPath)
	if err != nil {
		return nil, err
	}
	return crdt.FromDatabase(db, replicaID), nil
}
