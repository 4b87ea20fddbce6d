package store

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	slot Slot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.slot.IsZero() {
		return Slot{}, ErrTokenNotFound
	}
	return s.slot, nil
}

func (s *MemoryStore) Save(_ context.Context, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = slot
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot = Slot{}
	return nil
}
