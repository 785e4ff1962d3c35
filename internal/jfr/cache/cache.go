// Package cache implements the fingerprint-keyed decoder cache (§4.J): a
// structural hash of reachable metadata maps to an immutable decoder set,
// shared across chunks and recordings within one parsing context.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
)

// Key composites the 32-byte structural fingerprint with a fast xxhash
// digest of the registered schema set (typed.HashSchemas); a lookup hits
// only when both parts match.
type Key struct {
	Fingerprint metadata.Fingerprint
	SchemaHash  uint64
}

// Store is a concurrency-safe fingerprint -> decoder-set table, shared by
// every Parser opened against one Context (§5: "lock-free or coarsely
// locked concurrent mapping"). Installation is check-then-act behind mu;
// reads proceed unlocked against an atomically-swapped snapshot map.
type Store struct {
	mu       sync.Mutex
	snapshot atomic.Value // map[Key]any
}

// NewStore creates an empty cache.
func NewStore() *Store {
	s := &Store{}
	s.snapshot.Store(make(map[Key]any))
	return s
}

// Get returns the cached entry for key without locking.
func (s *Store) Get(key Key) (any, bool) {
	m := s.snapshot.Load().(map[Key]any)
	v, ok := m[key]
	return v, ok
}

// GetOrInstall returns the cached entry for key, building and installing it
// via build if absent. Only one caller's build runs per key even under
// concurrent installation attempts; every other caller observes the
// winner's result. Decoder sets, once installed, are never replaced or
// evicted by the core (§4.J).
func (s *Store) GetOrInstall(key Key, build func() (any, error)) (any, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.Get(key); ok {
		return v, nil
	}

	v, err := build()
	if err != nil {
		return nil, err
	}

	old := s.snapshot.Load().(map[Key]any)
	next := make(map[Key]any, len(old)+1)
	for k, existing := range old {
		next[k] = existing
	}
	next[key] = v
	s.snapshot.Store(next)

	return v, nil
}

// Len reports the number of installed entries (diagnostics only).
func (s *Store) Len() int {
	return len(s.snapshot.Load().(map[Key]any))
}
