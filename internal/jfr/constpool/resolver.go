package constpool

// PoolReady reports whether typeID's pool has completed its fixpoint
// resolution. Satisfies value.PoolResolver.
func (s *Store) PoolReady(typeID int64) bool {
	p, ok := s.pools[typeID]
	return ok && p.ready
}

// PoolLookup resolves an index in typeID's pool to its final value.
// Satisfies value.PoolResolver. Only meaningful once PoolReady(typeID) is
// true; returns ok=false otherwise, by construction (unresolved slots never
// report resolved=true until Finalize completes).
func (s *Store) PoolLookup(typeID, index int64) (any, bool) {
	p, ok := s.pools[typeID]
	if !ok || !p.ready {
		return nil, false
	}
	slot, ok := p.slots[index]
	if !ok || !slot.resolved {
		return nil, false
	}
	return slot.value, true
}
