package store

import (
	"fmt"
	"sync"
)

type MemoryStore[TKey comparable, TVal any] struct {
	mu sync.RWMutex
	Db map[TKey]TVal
}

func NewMemoryStore[TKey comparable, TVal any]() *MemoryStore[TKey, TVal] {
	return &MemoryStore[TKey, TVal]{Db: map[TKey]TVal{}}
}

func (s *MemoryStore[TKey, TVal]) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Db), nil
}

func (s *MemoryStore[TKey, TVal]) Get(key TKey) (TVal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, found := s.Db[key]
	if !found {
		var defaultVal TVal
		return defaultVal, fmt.Errorf("item with key %v: %w", key, ErrKeyNotFound)
	}
	return value, nil
}

func (s *MemoryStore[TKey, TVal]) Put(key TKey, value TVal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Db[key] = value
	return nil
}

// Close drops every item, the store can't be reused afterwards
func (s *MemoryStore[TKey, TVal]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Db = nil
	return nil
}
