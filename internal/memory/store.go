package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the persistence contract for remembered facts.
//
// Implementations must be safe for concurrent use by multiple
// conversations. Absence is never an error: Recall returns an empty
// slice, Forget reports false, Get returns nil.
type Store interface {
	// Remember upserts content under topic and reports whether the entry
	// was newly stored or overwrote an existing one.
	Remember(ctx context.Context, topic, content string) (Action, error)

	// Recall returns the entries matching query. Wildcard returns every
	// entry; any other query matches topic or content case-insensitively
	// as a literal substring. An exact topic match sorts first, then most
	// recently updated first.
	Recall(ctx context.Context, query string) ([]Entry, error)

	// Forget removes the entry with the exact topic and reports whether
	// one existed. Forgetting an absent topic succeeds.
	Forget(ctx context.Context, topic string) (bool, error)

	// Get returns the entry with the exact topic, or nil when absent.
	Get(ctx context.Context, topic string) (*Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Wipe removes every entry and returns how many were removed.
	Wipe(ctx context.Context) (int, error)

	// Close releases the underlying database handle.
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	topic      TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories (updated_at DESC);
`

// SQLiteStore persists entries in a single SQLite table. The database
// file, pragmas and schema are established lazily on the first operation,
// so constructing a store never touches the disk. A failed open is
// retried on the next operation rather than cached.
type SQLiteStore struct {
	cfg Config

	mu sync.Mutex
	db *sql.DB
}

// New returns an unopened store for cfg.
func New(cfg Config) *SQLiteStore {
	return &SQLiteStore{cfg: cfg.withDefaults()}
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.cfg.Path }

// handle returns the open database, opening it on first use.
func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	s.db = db
	return db, nil
}

// open creates the data directory, opens the database and applies pragmas
// and schema. It does not take the caller's context: the handle outlives
// any single call.
func (s *SQLiteStore) open() (*sql.DB, error) {
	if s.cfg.Path == "" {
		return nil, errors.New("memory: database path is required")
	}
	if dir := filepath.Dir(s.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("memory: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.cfg.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("memory: apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: create schema: %w", err)
	}

	return db, nil
}

// Close releases the database handle. Operations after Close reopen it.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// Remember upserts content under topic. The write and the prune share
// one transaction, so concurrent readers only ever observe the state
// before or after the whole call. The transaction opens with a write
// statement: a read-first transaction could hit a stale snapshot under
// concurrent writers, which the busy timeout does not resolve.
func (s *SQLiteStore) Remember(ctx context.Context, topic, content string) (Action, error) {
	topic, err := cleanTopic(topic)
	if err != nil {
		return "", err
	}
	db, err := s.handle()
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", storageErr("begin remember", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixNano()
	res, err := tx.ExecContext(ctx,
		`UPDATE memories SET content = ?, updated_at = ? WHERE topic = ?`,
		content, now, topic)
	if err != nil {
		return "", storageErr("update topic", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return "", storageErr("update topic", err)
	}

	if updated == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memories (topic, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			topic, content, now, now)
		if err != nil {
			return "", storageErr("insert topic", err)
		}
		if _, err := pruneTx(ctx, tx, s.cfg.MaxEntries); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("commit remember", err)
	}

	if updated > 0 {
		return ActionUpdated, nil
	}
	return ActionStored, nil
}

// likeEscaper makes a recall query a literal substring pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Recall returns entries matching query, or every entry for Wildcard.
func (s *SQLiteStore) Recall(ctx context.Context, query string) ([]Entry, error) {
	query, err := cleanQuery(query)
	if err != nil {
		return nil, err
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if query == Wildcard {
		rows, err = db.QueryContext(ctx, `
SELECT topic, content, created_at, updated_at
FROM memories
ORDER BY updated_at DESC, topic ASC`)
	} else {
		pattern := "%" + likeEscaper.Replace(query) + "%"
		rows, err = db.QueryContext(ctx, `
SELECT topic, content, created_at, updated_at
FROM memories
WHERE topic LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
ORDER BY (topic = ? COLLATE NOCASE) DESC, updated_at DESC, topic ASC`,
			pattern, pattern, query)
	}
	if err != nil {
		return nil, storageErr("recall query", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("scan entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate entries", err)
	}
	return entries, nil
}

// Forget removes the entry with the exact topic. Removing an absent topic
// is a successful no-op.
func (s *SQLiteStore) Forget(ctx context.Context, topic string) (bool, error) {
	topic, err := cleanTopic(topic)
	if err != nil {
		return false, err
	}
	db, err := s.handle()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM memories WHERE topic = ?`, topic)
	if err != nil {
		return false, storageErr("forget topic", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("forget topic", err)
	}
	return n > 0, nil
}

// Get returns the entry stored under the exact topic, or nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, topic string) (*Entry, error) {
	topic, err := cleanTopic(topic)
	if err != nil {
		return nil, err
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
SELECT topic, content, created_at, updated_at
FROM memories
WHERE topic = ?`, topic)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get topic", err)
	}
	return &e, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, storageErr("count entries", err)
	}
	return n, nil
}

// Wipe removes every entry and returns how many were removed.
func (s *SQLiteStore) Wipe(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM memories`)
	if err != nil {
		return 0, storageErr("wipe entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("wipe entries", err)
	}
	return int(n), nil
}

// Restore upserts entries preserving their original timestamps. Used by
// backup import; regular writes go through Remember.
func (s *SQLiteStore) Restore(ctx context.Context, entries []Entry) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin restore", err)
	}
	defer tx.Rollback()

	restored := 0
	for _, e := range entries {
		topic, err := cleanTopic(e.Topic)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO memories (topic, content, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (topic) DO UPDATE SET
	content    = excluded.content,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`,
			topic, e.Content, e.CreatedAt.UTC().UnixNano(), e.UpdatedAt.UTC().UnixNano())
		if err != nil {
			return 0, storageErr("restore topic", err)
		}
		restored++
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit restore", err)
	}
	return restored, nil
}

// Maintain prunes overflow beyond the configured cap and compacts the
// WAL. It returns the number of pruned entries.
func (s *SQLiteStore) Maintain(ctx context.Context) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin maintain", err)
	}
	defer tx.Rollback()

	pruned, err := pruneTx(ctx, tx, s.cfg.MaxEntries)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit maintain", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return pruned, storageErr("checkpoint", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA optimize`); err != nil {
		return pruned, storageErr("optimize", err)
	}
	return pruned, nil
}

// pruneTx deletes the oldest entries past the cap, keeping the most
// recently updated max rows.
func pruneTx(ctx context.Context, tx *sql.Tx, max int) (int, error) {
	res, err := tx.ExecContext(ctx, `
DELETE FROM memories WHERE topic IN (
	SELECT topic FROM memories
	ORDER BY updated_at DESC, topic ASC
	LIMIT -1 OFFSET ?
)`, max)
	if err != nil {
		return 0, storageErr("prune entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("prune entries", err)
	}
	return int(n), nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		topic, content   string
		created, updated int64
	)
	if err := sc.Scan(&topic, &content, &created, &updated); err != nil {
		return Entry{}, err
	}
	return Entry{
		Topic:     topic,
		Content:   content,
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}

var _ Store = (*SQLiteStore)(nil)
