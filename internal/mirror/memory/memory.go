package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/mirror"
)

// Store is an in-memory mirror destination for development and tests.
type Store struct {
	mu   sync.Mutex
	rows []mirror.Row
}

func New() *Store { return &Store{} }

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row mirror.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []mirror.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mirror.Row(nil), s.rows...)
}
