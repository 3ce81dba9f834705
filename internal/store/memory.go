package store

import (
	"context"
	"sync"
	"time"

	"github.com/quantfolio/fundfacts/internal/model"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.FactEntry
	budgets map[string]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]model.FactEntry),
		budgets: make(map[string]int),
	}
}

func (s *MemoryStore) GetFactEntry(_ context.Context, fundKey string, ttlDays int) (*model.FactEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[fundKey]
	if !ok || !e.Fresh(time.Now().UTC(), ttlDays) {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (s *MemoryStore) PutFactEntry(_ context.Context, entry *model.FactEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.FundKey] = *entry
	return nil
}

func (s *MemoryStore) CountFactEntries(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) GetBudget(_ context.Context, dateKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.budgets[dateKey], nil
}

func (s *MemoryStore) UpsertBudget(_ context.Context, dateKey string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[dateKey] = count
	return nil
}

func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }
