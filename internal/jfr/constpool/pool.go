// Package constpool implements the per-type constant pool store (§4.D):
// insertion-ordered entries populated from checkpoint events, with deferred
// resolution of forward references via a fixpoint sweep.
package constpool

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/value"
)

// Token is an unresolved reference to another pool's entry, recorded while a
// compound value is decoded eagerly but one of its fields points at an
// index that has not been inserted yet.
type Token struct {
	PoolTypeID int64
	Index      int64
}

// Slot is a stable handle for one pool entry: either it holds a resolved
// value, or it holds a Token pointing at another slot. Resolution writes
// through the slot in place, so anything already holding a *Slot reference
// observes the update without re-lookup (§9 "stable handle").
type Slot struct {
	resolved bool
	value    any
	token    Token
	isToken  bool
}

func (s *Slot) Value() (any, bool) {
	return s.value, s.resolved
}

// Pool is one typeId's constant pool: an insertion-ordered index -> Slot map.
type Pool struct {
	TypeID int64
	slots  map[int64]*Slot
	order  []int64
	ready  bool
}

func newPool(typeID int64) *Pool {
	return &Pool{TypeID: typeID, slots: make(map[int64]*Slot)}
}

// Ready reports whether this pool's "pools ready" signal has fired.
func (p *Pool) Ready() bool { return p.ready }

// Get looks up an entry by index. Before Ready, the returned Slot may still
// contain an unresolved Token; callers must not materialize it until Ready.
func (p *Pool) Get(index int64) (*Slot, bool) {
	s, ok := p.slots[index]
	return s, ok
}

// Len reports the number of entries currently inserted.
func (p *Pool) Len() int { return len(p.slots) }

// Indices returns every inserted index, in insertion order.
func (p *Pool) Indices() []int64 {
	out := make([]int64, len(p.order))
	copy(out, p.order)
	return out
}

// pendingRef is a nested *value.Deferred handle discovered inside a decoded
// compound or array during checkpoint decoding, queued for the fixpoint
// sweep to patch in place.
type pendingRef struct {
	handle *value.Deferred
	token  Token
}

// Store owns every constant pool for one chunk.
type Store struct {
	pools   map[int64]*Pool
	pending []pendingRef
}

// NewStore creates an empty constant-pool store for one chunk's lifetime.
func NewStore() *Store {
	return &Store{pools: make(map[int64]*Pool)}
}

// Pool returns (creating if necessary) the pool for a typeId.
func (s *Store) Pool(typeID int64) *Pool {
	p, ok := s.pools[typeID]
	if !ok {
		p = newPool(typeID)
		s.pools[typeID] = p
	}
	return p
}

// Lookup returns the pool for typeID if it has been populated at all, for
// callers that must not implicitly create a pool (value decode of a
// pool-flagged field whose pool never received a checkpoint).
func (s *Store) Lookup(typeID int64) (*Pool, bool) {
	p, ok := s.pools[typeID]
	return p, ok
}

// PutValue inserts a resolved value at index in typeID's pool.
func (s *Store) PutValue(typeID, index int64, value any) {
	p := s.Pool(typeID)
	if _, exists := p.slots[index]; !exists {
		p.order = append(p.order, index)
	}
	p.slots[index] = &Slot{resolved: true, value: value}
}

// PutToken inserts a deferred reference at index in typeID's pool: the
// entry's true value is itself another pool's entry, not yet known to be
// resolved.
func (s *Store) PutToken(typeID, index int64, tok Token) {
	p := s.Pool(typeID)
	if _, exists := p.slots[index]; !exists {
		p.order = append(p.order, index)
	}
	p.slots[index] = &Slot{isToken: true, token: tok}
}

// Finalize resolves every deferred token across every pool via fixpoint
// iteration: a token is replaced by the value or chained token its target
// slot currently holds, repeated until a pass makes no substitutions. A
// token still unresolved afterward is a CorruptPool condition — it either
// targets a nonexistent index, or is part of a cycle with no real value
// anchoring it.
func (s *Store) Finalize(maxIterations int) error {
	if maxIterations <= 0 {
		maxIterations = 1024
	}

	for iter := 0; iter < maxIterations; iter++ {
		progressed := false
		allResolved := true

		for _, p := range s.pools {
			for _, idx := range p.order {
				slot := p.slots[idx]
				if slot.resolved {
					continue
				}
				target, ok := s.resolveToken(slot.token)
				if !ok {
					allResolved = false
					continue
				}
				if target.resolved {
					slot.value = target.value
					slot.resolved = true
					slot.isToken = false
					progressed = true
				} else if target.isToken {
					// Chain through: adopt the target's token so the next
					// pass follows it directly instead of re-deref'ing.
					if target.token != slot.token {
						slot.token = target.token
						progressed = true
					}
					allResolved = false
				} else {
					allResolved = false
				}
			}
		}

		pendingProgressed, pendingAllResolved := s.resolvePending()
		progressed = progressed || pendingProgressed
		allResolved = allResolved && pendingAllResolved

		if allResolved {
			for _, p := range s.pools {
				p.ready = true
			}
			return nil
		}
		if !progressed {
			break
		}
	}

	return s.reportUnresolved()
}

// resolvePending attempts to resolve every nested *value.Deferred handle
// queued during checkpoint decode against the now-(possibly still
// partially-)populated pools.
func (s *Store) resolvePending() (progressed bool, allResolved bool) {
	allResolved = true
	for _, ref := range s.pending {
		if ref.handle.Resolved() {
			continue
		}
		target, ok := s.resolveToken(ref.token)
		if !ok || !target.resolved {
			allResolved = false
			continue
		}
		ref.handle.Resolve(target.value)
		progressed = true
	}
	return progressed, allResolved
}

func (s *Store) resolveToken(tok Token) (*Slot, bool) {
	p, ok := s.pools[tok.PoolTypeID]
	if !ok {
		return nil, false
	}
	slot, ok := p.slots[tok.Index]
	return slot, ok
}

func (s *Store) reportUnresolved() error {
	for _, ref := range s.pending {
		if !ref.handle.Resolved() {
			return fmt.Errorf("constpool: unresolved reference to pool %d index %d", ref.token.PoolTypeID, ref.token.Index)
		}
	}
	for _, p := range s.pools {
		for _, idx := range p.order {
			slot := p.slots[idx]
			if !slot.resolved {
				return fmt.Errorf("constpool: unresolved reference at pool %d index %d (points at pool %d index %d)",
					p.TypeID, idx, slot.token.PoolTypeID, slot.token.Index)
			}
		}
	}
	return fmt.Errorf("constpool: fixpoint did not converge")
}
