// Package sqlite provides a SQLite implementation of storage.StatementStore
// using the pure-Go modernc.org/sqlite driver. It is the default store: the
// trained statements survive restarts in a single database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhuss/twinbot/pkg/storage"
)

// DefaultPath is the database file used when no path is configured.
const DefaultPath = "digitalTwinBot.db"

const schema = `
CREATE TABLE IF NOT EXISTS statement (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	search_text TEXT NOT NULL DEFAULT '',
	conversation TEXT NOT NULL DEFAULT '',
	in_response_to TEXT NOT NULL DEFAULT '',
	search_in_response_to TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_statement_search_in_response_to
	ON statement (search_in_response_to);
`

// Store is a SQLite-backed StatementStore.
type Store struct {
	db   *sql.DB
	path string
}

// Ensure Store implements storage.StatementStore at compile time.
var _ storage.StatementStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveStatements inserts statements in a single transaction.
func (s *Store) SaveStatements(ctx context.Context, statements []storage.Statement) error {
	if err := storage.Validate(statements); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO statement (
			text, search_text, conversation,
			in_response_to, search_in_response_to, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, st := range statements {
		created := st.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx,
			st.Text, st.SearchText, st.Conversation,
			st.InResponseTo, st.SearchInResponseTo, created.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("inserting statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing statements: %w", err)
	}
	return nil
}

// Statements returns all statements ordered by ID.
func (s *Store) Statements(ctx context.Context) ([]storage.Statement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, search_text, conversation,
		       in_response_to, search_in_response_to, created_at
		FROM statement ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying statements: %w", err)
	}
	defer rows.Close()

	var out []storage.Statement
	for rows.Next() {
		var st storage.Statement
		var created string
		if err := rows.Scan(
			&st.ID, &st.Text, &st.SearchText, &st.Conversation,
			&st.InResponseTo, &st.SearchInResponseTo, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning statement: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			st.CreatedAt = t
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating statements: %w", err)
	}
	return out, nil
}

// Count returns the number of stored statements.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM statement").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting statements: %w", err)
	}
	return n, nil
}

// Clear deletes every statement.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM statement"); err != nil {
		return fmt.Errorf("clearing statements: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
