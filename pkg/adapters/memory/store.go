package memory

import (
	"context"
	"sync"

	"github.com/aretw0/cardsort/pkg/domain"
)

// CounterStore implements ports.CounterStore in memory.
// Safe for concurrent use.
type CounterStore struct {
	mu       sync.RWMutex
	counters domain.Counters
	saves    int
	err      error
}

// NewCounterStore creates a store seeded with initial values.
func NewCounterStore(initial domain.Counters) *CounterStore {
	return &CounterStore{counters: initial}
}

// Load implements ports.CounterStore.
func (s *CounterStore) Load(ctx context.Context) (domain.Counters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters, nil
}

// Save implements ports.CounterStore.
func (s *CounterStore) Save(ctx context.Context, counters domain.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.counters = counters
	s.saves++
	return nil
}

// FailWith makes subsequent saves return err (nil clears it).
func (s *CounterStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Saves returns how many successful saves happened.
func (s *CounterStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// CriteriaStore implements ports.CriteriaStore in memory.
type CriteriaStore struct {
	mu    sync.RWMutex
	table domain.CriteriaTable
}

// NewCriteriaStore creates a store holding table.
func NewCriteriaStore(table domain.CriteriaTable) *CriteriaStore {
	return &CriteriaStore{table: table.Clone()}
}

// Load implements ports.CriteriaStore.
func (s *CriteriaStore) Load(ctx context.Context) (domain.CriteriaTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone(), nil
}

// Save implements ports.CriteriaStore.
func (s *CriteriaStore) Save(ctx context.Context, table domain.CriteriaTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table.Clone()
	return nil
}
