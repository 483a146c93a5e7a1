// Package storage is the local identifier to opaque byte-value map
// each peer keeps for the keys in its arc (spec.md §3, §4.7). It
// holds its own lock, independent of routing.Table's, matching the
// teacher corpus's convention of one mutex per independently-owned
// piece of state rather than a single global lock.
package storage

import (
	"sync"

	"github.com/lrem/chord/ring"
)

// Store is a concurrency-safe map from identifier to value.
type Store struct {
	mu   sync.RWMutex
	data map[ring.Key][]byte
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[ring.Key][]byte)}
}

// Get returns the stored value and whether it was present.
func (s *Store) Get(key ring.Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	return value, ok
}

// Put stores value under key, overwriting any previous value.
func (s *Store) Put(key ring.Key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Len reports how many keys are currently stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
