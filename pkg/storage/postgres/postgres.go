// Package postgres provides a PostgreSQL implementation of storage.StatementStore.
// It uses pgx/v5 for connection pooling and COPY for bulk training writes, so
// several server replicas can share one trained corpus.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/twinbot/pkg/storage"
)

// Store is a PostgreSQL-backed StatementStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.StatementStore at compile time.
var _ storage.StatementStore = (*Store)(nil)

var statementColumns = []string{
	"text", "search_text", "conversation",
	"in_response_to", "search_in_response_to", "created_at",
}

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveStatements bulk-loads statements with COPY inside one transaction.
func (s *Store) SaveStatements(ctx context.Context, statements []storage.Statement) error {
	if err := storage.Validate(statements); err != nil {
		return err
	}
	if len(statements) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(statements))
	for _, st := range statements {
		created := st.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows = append(rows, []any{
			st.Text, st.SearchText, st.Conversation,
			st.InResponseTo, st.SearchInResponseTo, created,
		})
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"statements"}, statementColumns, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return fmt.Errorf("copying statements: %w", err)
	}
	return nil
}

// Statements returns all statements ordered by ID.
func (s *Store) Statements(ctx context.Context) ([]storage.Statement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, text, search_text, conversation,
		       in_response_to, search_in_response_to, created_at
		FROM statements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying statements: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Statement, error) {
		var st storage.Statement
		err := row.Scan(
			&st.ID, &st.Text, &st.SearchText, &st.Conversation,
			&st.InResponseTo, &st.SearchInResponseTo, &st.CreatedAt,
		)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning statements: %w", err)
	}
	return out, nil
}

// Count returns the number of stored statements.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM statements").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting statements: %w", err)
	}
	return n, nil
}

// Clear deletes every statement.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM statements"); err != nil {
		return fmt.Errorf("clearing statements: %w", err)
	}
	return nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
