// Package memory is an in-memory ledger used by tests and as the fallback
// backend when no workbook is configured yet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kasboek/internal/core"
	"kasboek/internal/ledger"
)

type Store struct {
	mu    sync.Mutex
	items []core.Transaction // newest first
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the transaction at the front, mirroring the workbook's
// insert-at-row-2 behavior, and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.Transaction{t}, s.items...)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

func (s *Store) Recent(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]core.Transaction, n)
	copy(out, s.items[:n])
	return out, nil
}

func (s *Store) All(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Store) Balance(_ context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, t := range s.items {
		total += t.Direction.Signed(t.Amount)
	}
	return core.Money{Cents: total}, nil
}
