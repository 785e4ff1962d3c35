package typed

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/value"
	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
)

type opKind int

const (
	opSkip opKind = iota
	opDecode
	opRaw
	opNested
	opNestedArray
)

// fieldOp is one compiled step of a Decoder's field script. It names its
// target class rather than holding a *metadata.Class pointer: typeId
// numbering is chunk-local, so a cached Decoder resolves the concrete class
// against whichever chunk it is currently decoding, by name, at call time.
type fieldOp struct {
	kind            opKind
	wireArray       bool
	wirePool        bool
	fieldName       string
	targetClassName string
	slot            string
	sub             *Decoder
}

// Decoder is a compiled, chunk-independent field-op script for one Schema
// bound against one structural metadata shape (§9 "interpreter-first typed
// decoder": an ordered script of decode/skip/recurse steps, not generated
// code). Once built it holds no pointers into any particular chunk's graph,
// so the same Decoder instance is reused, unchanged, across every chunk and
// recording whose metadata shares the binding's structural fingerprint
// (§4.J, §8 "referentially identical" decoder reuse).
type Decoder struct {
	Schema *Schema
	ops    []fieldOp
}

// Bind resolves schema against graph once: locates the schema's class,
// validates every accessor for assignment-compatibility, and compiles the
// field-order op script. Fields not covered by the schema compile to a
// skip-decode step.
func Bind(g *metadata.Graph, schema *Schema) (*Decoder, error) {
	class, ok := g.ByName(schema.ClassName)
	if !ok {
		return nil, fmt.Errorf("typed: schema %q: class not present in this chunk's metadata", schema.ClassName)
	}

	d := &Decoder{Schema: schema}
	for _, f := range class.Fields {
		acc, ok := schema.accessor(f.Name)
		if !ok {
			d.ops = append(d.ops, fieldOp{
				kind: opSkip, wireArray: f.Array, wirePool: f.ConstantPool,
				fieldName: f.Name, targetClassName: f.Type.Name,
			})
			continue
		}
		if err := validateAccessor(f, acc); err != nil {
			return nil, fmt.Errorf("typed: schema %q field %q: %w", schema.ClassName, f.Name, err)
		}

		switch {
		case acc.Raw:
			d.ops = append(d.ops, fieldOp{kind: opRaw, fieldName: f.Name, slot: acc.Name})

		case acc.Kind == KindCompound && acc.Nested != nil && !f.ConstantPool:
			sub, err := Bind(g, acc.Nested)
			if err != nil {
				return nil, fmt.Errorf("typed: schema %q field %q: %w", schema.ClassName, f.Name, err)
			}
			kind := opNested
			if f.Array {
				kind = opNestedArray
			}
			d.ops = append(d.ops, fieldOp{
				kind: kind, fieldName: f.Name, targetClassName: f.Type.Name, slot: acc.Name, sub: sub,
			})

		default:
			d.ops = append(d.ops, fieldOp{
				kind: opDecode, wireArray: f.Array, wirePool: f.ConstantPool,
				fieldName: f.Name, targetClassName: f.Type.Name, slot: acc.Name,
			})
		}
	}
	return d, nil
}

// Decode reads one instance of this decoder's class from buf, returning a
// projected Record and the number of bytes consumed. pool may be nil, in
// which case a fresh Record is always allocated.
func (d *Decoder) Decode(r *value.Reader, buf []byte, pool *RecordPool) (*Record, int, error) {
	rec := pool.get()
	rec.Schema = d.Schema

	off := 0
	for _, op := range d.ops {
		n, err := d.applyOp(op, r, rec, buf[off:], pool)
		if err != nil {
			pool.Put(rec)
			return nil, 0, fmt.Errorf("field %q: %w", op.fieldName, err)
		}
		off += n
	}
	return rec, off, nil
}

func (d *Decoder) applyOp(op fieldOp, r *value.Reader, rec *Record, buf []byte, pool *RecordPool) (int, error) {
	switch op.kind {
	case opSkip:
		class, ok := r.Graph.ByName(op.targetClassName)
		if !ok {
			return 0, fmt.Errorf("target class %q not present in chunk metadata", op.targetClassName)
		}
		return r.SkipField(class, op.wireArray, op.wirePool, buf)

	case opRaw:
		idx, n, err := wire.ReadVarLong(buf)
		if err != nil {
			return 0, fmt.Errorf("raw pool index: %w", err)
		}
		rec.values[op.slot] = int64(idx)
		return n, nil

	case opDecode:
		class, ok := r.Graph.ByName(op.targetClassName)
		if !ok {
			return 0, fmt.Errorf("target class %q not present in chunk metadata", op.targetClassName)
		}
		v, n, err := r.DecodeField(class, op.wireArray, op.wirePool, buf)
		if err != nil {
			return 0, err
		}
		rec.values[op.slot] = v
		return n, nil

	case opNested:
		sub, n, err := op.sub.Decode(r, buf, pool)
		if err != nil {
			return 0, err
		}
		rec.values[op.slot] = sub
		return n, nil

	case opNestedArray:
		count, n, err := wire.ReadVarInt(buf)
		if err != nil {
			return 0, fmt.Errorf("array length: %w", err)
		}
		off := n
		elems := make([]*Record, count)
		for i := uint32(0); i < count; i++ {
			elemRec, m, err := op.sub.Decode(r, buf[off:], pool)
			if err != nil {
				return 0, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = elemRec
			off += m
		}
		rec.values[op.slot] = elems
		return off, nil
	}
	return 0, fmt.Errorf("typed: unknown op kind %d", op.kind)
}

var primitiveKindByName = map[string]Kind{
	"boolean":          KindBoolean,
	"byte":             KindByte,
	"short":            KindShort,
	"char":             KindChar,
	"int":              KindInt,
	"long":             KindLong,
	"float":            KindFloat,
	"double":           KindDouble,
	"java.lang.String": KindString,
}

// widenRank orders primitive kinds within a numeric family for assignment-
// widening checks (byte -> short/char -> int -> long; float -> double).
var widenRank = map[Kind]int{
	KindByte: 1, KindShort: 2, KindChar: 2, KindInt: 3, KindLong: 4,
	KindFloat: 1, KindDouble: 2,
}

func widenable(field, accessor Kind) bool {
	if field == accessor {
		return true
	}
	switch field {
	case KindByte, KindShort, KindChar, KindInt, KindLong:
		switch accessor {
		case KindByte, KindShort, KindChar, KindInt, KindLong:
			return widenRank[accessor] >= widenRank[field]
		}
	case KindFloat, KindDouble:
		switch accessor {
		case KindFloat, KindDouble:
			return widenRank[accessor] >= widenRank[field]
		}
	}
	return false
}

func validateAccessor(f *metadata.Field, acc Accessor) error {
	if acc.Raw {
		if !f.ConstantPool {
			return fmt.Errorf("raw accessor requires a constant-pool-flagged field")
		}
		if acc.Kind != KindLong && acc.Kind != KindInt {
			return fmt.Errorf("raw accessor must declare kind int or long, got %s", acc.Kind)
		}
		return nil
	}
	if acc.Kind == KindCompound {
		if f.Type.Primitive {
			return fmt.Errorf("accessor kind compound but field resolves to primitive type %q", f.Type.Name)
		}
		return nil
	}
	if !f.Type.Primitive {
		return fmt.Errorf("accessor kind %s is primitive but field resolves to compound type %q", acc.Kind, f.Type.Name)
	}
	want, ok := primitiveKindByName[f.Type.Name]
	if !ok {
		return fmt.Errorf("field has unrecognized primitive type %q", f.Type.Name)
	}
	if !widenable(want, acc.Kind) {
		return fmt.Errorf("field of type %q is not assignment-compatible with accessor kind %s", f.Type.Name, acc.Kind)
	}
	return nil
}
