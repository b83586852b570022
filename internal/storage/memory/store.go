// Package memory provides in-memory session storage for SockMesh.
//
// It implements the persistence gateway with a mutex-guarded map.
// The store is intended for tests and ephemeral dev servers; rows do
// not survive a process restart.
package memory

import (
	"context"
	"sync"

	"github.com/yndnr/sockmesh-go/internal/storage"
)

// Store provides in-memory session row storage.
type Store struct {
	mu   sync.RWMutex
	rows map[string]storage.Row

	// upserts records every write in order, for test assertions on
	// write-behind behavior.
	upserts []storage.Row

	// failNext, when set, makes the next operations return this error.
	failNext error
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		rows: make(map[string]storage.Row),
	}
}

// Upsert inserts or overwrites the row keyed by token.
func (s *Store) Upsert(_ context.Context, token string, expires int64, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		return s.failNext
	}

	row := storage.Row{Token: token, Expires: expires, Data: data}
	s.rows[token] = row
	s.upserts = append(s.upserts, row)
	return nil
}

// Lookup returns the row for a token or storage.ErrRowNotFound.
func (s *Store) Lookup(_ context.Context, token string) (*storage.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failNext != nil {
		return nil, s.failNext
	}

	row, ok := s.rows[token]
	if !ok {
		return nil, storage.ErrRowNotFound
	}
	clone := row
	return &clone, nil
}

// Close releases nothing; it exists to satisfy the gateway interface.
func (s *Store) Close() error {
	return nil
}

// FailWith makes all subsequent operations return err. Pass nil to
// restore normal behavior. Test helper.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Upserts returns a copy of every recorded write in order. Test helper.
func (s *Store) Upserts() []storage.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Row, len(s.upserts))
	copy(out, s.upserts)
	return out
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
