// Package memory provides an in-memory implementation of storage.StatementStore
// for tests and ephemeral deployments. Statements are lost when the process
// restarts, so the bot is retrained on every start.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/twinbot/pkg/storage"
)

// Store is an in-memory StatementStore.
type Store struct {
	mu         sync.RWMutex
	statements []storage.Statement
	nextID     int64
	closed     bool
}

// Ensure Store implements storage.StatementStore at compile time.
var _ storage.StatementStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{nextID: 1}
}

// SaveStatements appends statements and assigns their IDs.
func (s *Store) SaveStatements(_ context.Context, statements []storage.Statement) error {
	if err := storage.Validate(statements); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	now := time.Now().UTC()
	for _, st := range statements {
		st.ID = s.nextID
		s.nextID++
		if st.CreatedAt.IsZero() {
			st.CreatedAt = now
		}
		s.statements = append(s.statements, st)
	}
	return nil
}

// Statements returns a copy of all statements in insertion order.
func (s *Store) Statements(_ context.Context) ([]storage.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	out := make([]storage.Statement, len(s.statements))
	copy(out, s.statements)
	return out, nil
}

// Count returns the number of stored statements.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, storage.ErrClosed
	}
	return len(s.statements), nil
}

// Clear removes all statements. IDs keep increasing across clears.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}
	s.statements = nil
	return nil
}

// HealthCheck reports ErrClosed after Close, nil otherwise.
func (s *Store) HealthCheck(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

// Close marks the store closed and drops its contents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.statements = nil
	return nil
}
