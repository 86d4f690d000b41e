// Package sqlitestore persists lock registries in a SQLite database, one
// row per scope holding the encoded registry.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/ownership/internal/filelock"
)

// DefaultBusyTimeout is how long a connection waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

const schema = `CREATE TABLE IF NOT EXISTS ownership_registries (
	scope      TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store keeps registries in the ownership_registries table. Transactions
// start IMMEDIATE, so Update holds the database write lock for its whole
// cycle and competing processes wait on the busy timeout.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		path, DefaultBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load implements filelock.Store.
func (s *Store) Load(ctx context.Context, scope string, def *filelock.Registry) (*filelock.Registry, error) {
	return load(ctx, s.db, scope, def)
}

// Save implements filelock.Store.
func (s *Store) Save(ctx context.Context, scope string, reg *filelock.Registry) error {
	return save(ctx, s.db, scope, reg)
}

// Update implements filelock.AtomicStore inside a single transaction.
func (s *Store) Update(ctx context.Context, scope string, def *filelock.Registry, fn filelock.UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	reg, err := load(ctx, tx, scope, def)
	if err != nil {
		return err
	}
	changed, err := fn(reg)
	if err != nil || !changed {
		return err
	}
	if err := save(ctx, tx, scope, reg); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// scopes returns every scope with a stored registry.
func (s *Store) scopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scope FROM ownership_registries ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

func load(ctx context.Context, q querier, scope string, def *filelock.Registry) (*filelock.Registry, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM ownership_registries WHERE scope = ?`, scope).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	return filelock.DecodeRegistry([]byte(data))
}

func save(ctx context.Context, q querier, scope string, reg *filelock.Registry) error {
	data, err := filelock.EncodeRegistry(reg)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO ownership_registries (scope, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		scope, string(data), reg.LastUpdated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert registry: %w", err)
	}
	return nil
}
