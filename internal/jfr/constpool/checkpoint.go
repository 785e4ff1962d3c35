package constpool

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/value"
	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
)

// DecodeCheckpoint parses one checkpoint event payload (§4.D): a sequence of
// (typeId, entries[]) blocks. Each entry is decoded eagerly via the given
// value reader; any *value.Deferred handles reachable inside the decoded
// entry (a pool-flagged field whose target pool is not ready yet) are
// registered as pending references and patched in place by Finalize's
// fixpoint sweep.
func (s *Store) DecodeCheckpoint(g *metadata.Graph, r *value.Reader, payload []byte) error {
	off := 0

	blockCount, n, err := wire.ReadVarInt(payload[off:])
	if err != nil {
		return fmt.Errorf("checkpoint: block count: %w", err)
	}
	off += n

	for b := uint32(0); b < blockCount; b++ {
		typeID, n, err := wire.ReadVarLong(payload[off:])
		if err != nil {
			return fmt.Errorf("checkpoint: block %d typeId: %w", b, err)
		}
		off += n

		class, ok := g.ByTypeID(int64(typeID))
		if !ok {
			return fmt.Errorf("checkpoint: block %d references unknown typeId %d", b, typeID)
		}

		entryCount, n, err := wire.ReadVarInt(payload[off:])
		if err != nil {
			return fmt.Errorf("checkpoint: block %d entry count: %w", b, err)
		}
		off += n

		for e := uint32(0); e < entryCount; e++ {
			index, n, err := wire.ReadVarLong(payload[off:])
			if err != nil {
				return fmt.Errorf("checkpoint: block %d entry %d index: %w", b, e, err)
			}
			off += n

			v, n, err := r.DecodeField(class, false, false, payload[off:])
			if err != nil {
				return fmt.Errorf("checkpoint: block %d entry %d (typeId %d index %d): %w", b, e, typeID, index, err)
			}
			off += n

			s.PutValue(int64(typeID), int64(index), v)
			s.registerDeferred(g, v)
		}
	}

	return nil
}

// registerDeferred walks a decoded value for embedded *value.Deferred
// handles (inside compound fields or array elements) and queues each one for
// resolution during Finalize.
func (s *Store) registerDeferred(g *metadata.Graph, v any) {
	switch t := v.(type) {
	case *value.Deferred:
		poolTypeID := t.PoolTypeID
		if poolTypeID == 0 {
			if strClass, ok := g.ByName("java.lang.String"); ok {
				poolTypeID = strClass.TypeID
			}
		}
		s.pending = append(s.pending, pendingRef{
			handle: t,
			token:  Token{PoolTypeID: poolTypeID, Index: t.Index},
		})
	case *value.Compound:
		for _, name := range t.FieldOrder {
			s.registerDeferred(g, t.Fields[name])
		}
	case []any:
		for _, elem := range t {
			s.registerDeferred(g, elem)
		}
	}
}
