// Package value drives decoding of a single value given a metadata class
// (§4.F): primitives delegate to wire, arrays read a varint count then that
// many elements, compound fields recurse under a nesting-depth limit that
// stops cycles, and pool-flagged fields either resolve immediately (pool ready)
// or yield a Deferred reference for the caller to resolve later.
package value

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
)

// PoolResolver is the read-only view of a chunk's constant-pool store that
// the value reader needs. Defined here (rather than importing constpool
// directly) so constpool can depend on value for checkpoint decoding without
// creating an import cycle; constpool.Store satisfies this interface.
type PoolResolver interface {
	PoolReady(typeID int64) bool
	PoolLookup(typeID, index int64) (any, bool)
}

// Deferred is a stable handle for a value that could not be resolved because
// its pool was not yet ready when decoded (§9 "deep compound graphs with
// cycles": represent entries behind stable handles; resolution writes
// through the slot). A *Deferred may be embedded inside a *Compound's Fields
// map or an array's elements; the constant-pool store that owns the
// eventual resolution mutates it in place via Resolve, so every holder of
// the pointer observes the final value without re-lookup.
type Deferred struct {
	PoolTypeID int64
	Index      int64

	resolved bool
	value    any
}

// Resolve writes the final value through this handle. Called exactly once,
// by the constant-pool store's fixpoint sweep.
func (d *Deferred) Resolve(v any) {
	d.value = v
	d.resolved = true
}

// Resolved reports whether Resolve has been called.
func (d *Deferred) Resolved() bool { return d.resolved }

// Value returns the resolved value, or nil if not yet resolved.
func (d *Deferred) Value() any { return d.value }

// Compound is a decoded instance of a non-primitive, non-array metadata
// class: field name -> decoded value (primitive, string, *Compound, []any,
// or Deferred), alongside the field order for callers that need it.
type Compound struct {
	Class      *metadata.Class
	FieldOrder []string
	Fields     map[string]any
}

const defaultMaxDepth = 64

// Reader decodes values against one chunk's metadata graph and constant-pool
// store.
type Reader struct {
	Graph    *metadata.Graph
	Pools    PoolResolver
	MaxDepth int

	depth int
}

// NewReader creates a value reader bound to one chunk's metadata and pools.
func NewReader(g *metadata.Graph, pools PoolResolver) *Reader {
	return &Reader{Graph: g, Pools: pools, MaxDepth: defaultMaxDepth}
}

func (r *Reader) maxDepth() int {
	if r.MaxDepth <= 0 {
		return defaultMaxDepth
	}
	return r.MaxDepth
}

// DecodeField decodes one occurrence of a field's value (or, if array is
// true at the call site, one element of it) from buf, returning the decoded
// value and the number of bytes consumed.
func (r *Reader) DecodeField(class *metadata.Class, array bool, pool bool, buf []byte) (any, int, error) {
	if array {
		count, n, err := wire.ReadVarInt(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("value: array length: %w", err)
		}
		off := n
		elems := make([]any, count)
		for i := uint32(0); i < count; i++ {
			v, m, err := r.decodeScalar(class, pool, buf[off:])
			if err != nil {
				return nil, 0, fmt.Errorf("value: array element %d: %w", i, err)
			}
			elems[i] = v
			off += m
		}
		return elems, off, nil
	}
	return r.decodeScalar(class, pool, buf)
}

func (r *Reader) decodeScalar(class *metadata.Class, pool bool, buf []byte) (any, int, error) {
	if pool {
		idx, n, err := wire.ReadVarLong(buf)
		if err != nil {
			return nil, 0, fmt.Errorf("value: pool index: %w", err)
		}
		if r.Pools != nil && r.Pools.PoolReady(class.TypeID) {
			if v, ok := r.Pools.PoolLookup(class.TypeID, int64(idx)); ok {
				return v, n, nil
			}
		}
		return &Deferred{PoolTypeID: class.TypeID, Index: int64(idx)}, n, nil
	}

	if class.Primitive {
		return r.decodePrimitive(class.Name, buf)
	}

	return r.decodeCompound(class, buf)
}

func (r *Reader) decodePrimitive(name string, buf []byte) (any, int, error) {
	switch name {
	case "boolean":
		return wire.ReadBool(buf)
	case "byte":
		return wire.ReadByte(buf)
	case "short":
		return wire.ReadShort(buf)
	case "char":
		return wire.ReadChar(buf)
	case "int":
		return wire.ReadInt(buf)
	case "long":
		return wire.ReadLong(buf)
	case "float":
		return wire.ReadFloat32(buf)
	case "double":
		return wire.ReadFloat64(buf)
	case "java.lang.String":
		ds, n, err := wire.ReadString(buf)
		if err != nil {
			return nil, 0, err
		}
		if ds.Tag == wire.StringPoolRef {
			// Indexes the metadata string pool (typeId 0 is reserved for
			// metadata itself; by convention the string constant pool
			// shares typeId with java.lang.String's class when a chunk
			// carries one, so we resolve it the same way as any other
			// pool-flagged java.lang.String field).
			if r.Pools != nil {
				stringClass, ok := r.Graph.ByName("java.lang.String")
				if ok && r.Pools.PoolReady(stringClass.TypeID) {
					if v, ok := r.Pools.PoolLookup(stringClass.TypeID, int64(ds.PoolIndex)); ok {
						if s, ok := v.(string); ok {
							return s, n, nil
						}
					}
				}
			}
			return &Deferred{Index: int64(ds.PoolIndex)}, n, nil
		}
		if ds.IsNull {
			return "", n, nil
		}
		return ds.Value, n, nil
	default:
		return nil, 0, fmt.Errorf("value: unknown primitive class %q", name)
	}
}

func (r *Reader) decodeCompound(class *metadata.Class, buf []byte) (*Compound, int, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > r.maxDepth() {
		return nil, 0, fmt.Errorf("value: compound nesting exceeds max depth %d at class %q", r.maxDepth(), class.Name)
	}

	off := 0
	fields := make(map[string]any, len(class.Fields))
	order := make([]string, len(class.Fields))
	for i, f := range class.Fields {
		v, n, err := r.DecodeField(f.Type, f.Array, f.ConstantPool, buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("value: class %q field %q: %w", class.Name, f.Name, err)
		}
		fields[f.Name] = v
		order[i] = f.Name
		off += n
	}

	return &Compound{Class: class, FieldOrder: order, Fields: fields}, off, nil
}

// SkipField advances past one field's wire-encoded value without
// materializing it (used by the typed projector for fields not covered by
// the caller's schema).
func (r *Reader) SkipField(class *metadata.Class, array bool, pool bool, buf []byte) (int, error) {
	// Skipping still has to know the shape, so we reuse DecodeField and
	// discard the result; cheap enough at typical field-graph depths and
	// keeps one code path correct instead of two.
	_, n, err := r.DecodeField(class, array, pool, buf)
	return n, err
}
