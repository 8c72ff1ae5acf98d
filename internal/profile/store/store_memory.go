package store

import (
	"context"
	"sync"

	"profilereg/internal/profile/models"
	id "profilereg/pkg/domain"
)

// InMemoryStore keeps entries in process memory. Entries are cloned on the
// way in and out so callers never alias stored bytes.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.AccountID]*models.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.AccountID]*models.Entry)}
}

func (s *InMemoryStore) Get(_ context.Context, account id.AccountID) (*models.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[account]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

func (s *InMemoryStore) Put(_ context.Context, account id.AccountID, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[account] = entry.Clone()
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, account id.AccountID) (*models.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[account]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, account)
	return entry, true, nil
}

// Len returns the number of stored entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
