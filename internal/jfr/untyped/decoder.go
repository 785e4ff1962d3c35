package untyped

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/value"
)

// Mode selects how compound and array fields are materialized, per the
// `untyped_mode` configuration knob (§6, §4.H).
type Mode int

const (
	// Eager fully decodes every field at event time.
	Eager Mode = iota
	// Lazy stores a whole compound/array field as one thunk, resolved and
	// cached on first access.
	Lazy
	// Sparse behaves like Lazy but thunks each array element individually
	// instead of the whole array.
	Sparse
)

type fieldPlan struct {
	name            string
	targetClassName string
	array           bool
	constantPool    bool
	compound        bool
}

// Decoder is a compiled decode plan for one metadata class shape, mirroring
// typed.Decoder's name-based resolution of per-chunk classes (typeId
// numbering is chunk-local). The dispatcher builds a fresh Decoder per
// typeId in each chunk; untyped decoders are not kept in the fingerprint
// cache (§4.J).
type Decoder struct {
	ClassName string
	Mode      Mode

	fields   []fieldPlan
	names    *NameSet
	nameAt   []int // wire field index -> NameSet sorted position
	nameSets map[string]*NameSet
}

// Bind resolves className against graph once, compiling a decode plan and
// precomputing the shared NameSet flyweight for every compound class
// reachable through its fields (including className itself), so every
// Record of the same metadata shape - top-level or nested - shares the same
// names[] instance (§3, §8 testable property).
func Bind(g *metadata.Graph, className string, mode Mode) (*Decoder, error) {
	class, ok := g.ByName(className)
	if !ok {
		return nil, fmt.Errorf("untyped: class %q not present in this chunk's metadata", className)
	}

	d := &Decoder{ClassName: className, Mode: mode, nameSets: make(map[string]*NameSet)}

	fieldNames := make([]string, len(class.Fields))
	d.fields = make([]fieldPlan, len(class.Fields))
	for i, f := range class.Fields {
		fieldNames[i] = f.Name
		d.fields[i] = fieldPlan{
			name: f.Name, targetClassName: f.Type.Name, array: f.Array,
			constantPool: f.ConstantPool, compound: !f.Type.Primitive,
		}
	}
	d.names = newNameSet(fieldNames)
	d.nameSets[className] = d.names
	d.nameAt = make([]int, len(class.Fields))
	for i, f := range class.Fields {
		pos, _ := d.names.IndexOf(f.Name)
		d.nameAt[i] = pos
	}

	visited := map[string]bool{className: true}
	var walk func(c *metadata.Class)
	walk = func(c *metadata.Class) {
		for _, f := range c.Fields {
			if f.Type.Primitive || visited[f.Type.Name] {
				continue
			}
			visited[f.Type.Name] = true
			names := make([]string, len(f.Type.Fields))
			for i, sf := range f.Type.Fields {
				names[i] = sf.Name
			}
			d.nameSets[f.Type.Name] = newNameSet(names)
			walk(f.Type)
		}
	}
	walk(class)

	return d, nil
}

// Decode reads one instance of this decoder's class from buf. chunkDone is
// a shared flag the caller flips at onChunkEnd; any lazy/sparse thunk
// created here checks it before resolving (§9 "thunks must not outlive the
// chunk").
func (d *Decoder) Decode(r *value.Reader, buf []byte, chunkDone *bool) (*Record, int, error) {
	rec := &Record{Names: d.names, Values: make([]any, d.names.Len())}

	off := 0
	for i, fp := range d.fields {
		class, ok := r.Graph.ByName(fp.targetClassName)
		if !ok {
			return nil, 0, fmt.Errorf("untyped: target class %q not present in chunk metadata", fp.targetClassName)
		}
		v, n, err := r.DecodeField(class, fp.array, fp.constantPool, buf[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("untyped: field %q: %w", fp.name, err)
		}

		pos := d.nameAt[i]
		switch {
		case d.Mode == Eager || !fp.compound:
			rec.Values[pos] = d.convertEager(v)
		case d.Mode == Sparse && fp.array:
			rec.Values[pos] = d.convertSparseArray(v, chunkDone)
		default: // Lazy, or Sparse on a non-array compound field
			rec.Values[pos] = &thunk{
				raw:       v,
				chunkDone: chunkDone,
				convert:   func(raw any) (any, error) { return d.convertEager(raw), nil },
			}
		}
		off += n
	}
	return rec, off, nil
}

func (d *Decoder) convertSparseArray(v any, chunkDone *bool) any {
	arr, ok := v.([]any)
	if !ok {
		return d.convertEager(v)
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		if _, isCompound := e.(*value.Compound); isCompound {
			elem := e
			out[i] = &thunk{
				raw:       elem,
				chunkDone: chunkDone,
				convert:   func(raw any) (any, error) { return d.convertEager(raw), nil },
			}
			continue
		}
		out[i] = d.convertEager(e)
	}
	return out
}

// convertEager turns a decoded value.Compound/[]any tree into the untyped
// Record tree, reusing the precomputed NameSet flyweight for every compound
// class it encounters.
func (d *Decoder) convertEager(v any) any {
	switch t := v.(type) {
	case *value.Compound:
		ns, ok := d.nameSets[t.Class.Name]
		if !ok {
			ns = newNameSet(append([]string(nil), t.FieldOrder...))
		}
		vals := make([]any, ns.Len())
		for _, name := range t.FieldOrder {
			pos, ok := ns.IndexOf(name)
			if !ok {
				continue
			}
			vals[pos] = d.convertEager(t.Fields[name])
		}
		return &Record{Names: ns, Values: vals}
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = d.convertEager(e)
		}
		return out
	default:
		return v
	}
}
