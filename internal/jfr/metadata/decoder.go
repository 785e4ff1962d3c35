package metadata

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
)

// Graph is the fully resolved metadata graph for one chunk: every class
// reachable by typeId and by qualified name, plus the string table used to
// decode names and annotation values.
type Graph struct {
	Strings []string
	byID    map[int64]*Class
	byName  map[string]*Class
}

// ByTypeID looks up a class by its chunk-local typeId.
func (g *Graph) ByTypeID(id int64) (*Class, bool) {
	c, ok := g.byID[id]
	return c, ok
}

// ByName looks up a class by its qualified name (e.g. "jdk.ExecutionSample").
func (g *Graph) ByName(name string) (*Class, bool) {
	c, ok := g.byName[name]
	return c, ok
}

// Classes returns every class in typeId order, for deterministic iteration
// (fingerprinting, diagnostics).
func (g *Graph) Classes() []*Class {
	out := make([]*Class, 0, len(g.byID))
	for _, c := range g.byID {
		out = append(out, c)
	}
	sortClassesByTypeID(out)
	return out
}

func sortClassesByTypeID(cs []*Class) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j-1].TypeID > cs[j].TypeID; j-- {
			cs[j-1], cs[j] = cs[j], cs[j-1]
		}
	}
}

type rawField struct {
	nameIdx      uint32
	typeIDRef    int64
	array        bool
	constantPool bool
	anns         []Annotation
}

type rawClass struct {
	typeID    int64
	nameIdx   uint32
	hasSuper  bool
	superIdx  uint32
	primitive bool
	anns      []Annotation
	fields    []rawField
}

// Decode parses a metadata event payload (§4.C): a string table followed by
// a class table with raw typeId references, then resolves every field's
// type reference in a second pass.
func Decode(payload []byte) (*Graph, error) {
	off := 0

	stringCount, n, err := wire.ReadVarInt(payload[off:])
	if err != nil {
		return nil, fmt.Errorf("metadata: string count: %w", err)
	}
	off += n

	strs := make([]string, stringCount)
	for i := uint32(0); i < stringCount; i++ {
		ds, n, err := wire.ReadString(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("metadata: string table entry %d: %w", i, err)
		}
		off += n
		if ds.Tag == wire.StringPoolRef {
			return nil, fmt.Errorf("metadata: string table entry %d: pool references not permitted in the metadata string table", i)
		}
		strs[i] = ds.Value
	}

	classCount, n, err := wire.ReadVarInt(payload[off:])
	if err != nil {
		return nil, fmt.Errorf("metadata: class count: %w", err)
	}
	off += n

	str := func(idx uint32) (string, error) {
		if int(idx) >= len(strs) {
			return "", fmt.Errorf("string index %d out of range (table has %d entries)", idx, len(strs))
		}
		return strs[idx], nil
	}

	readAnnotations := func() ([]Annotation, error) {
		count, n, err := wire.ReadVarInt(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("annotation count: %w", err)
		}
		off += n
		anns := make([]Annotation, count)
		for i := uint32(0); i < count; i++ {
			nameIdx, n, err := wire.ReadVarInt(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("annotation %d name: %w", i, err)
			}
			off += n
			valIdx, n, err := wire.ReadVarInt(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("annotation %d value: %w", i, err)
			}
			off += n
			name, err := str(nameIdx)
			if err != nil {
				return nil, fmt.Errorf("annotation %d: %w", i, err)
			}
			val, err := str(valIdx)
			if err != nil {
				return nil, fmt.Errorf("annotation %d: %w", i, err)
			}
			anns[i] = Annotation{Name: name, Value: val}
		}
		return anns, nil
	}

	raws := make([]rawClass, classCount)
	for i := uint32(0); i < classCount; i++ {
		typeID, n, err := wire.ReadVarLong(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("metadata: class %d typeId: %w", i, err)
		}
		off += n

		nameIdx, n, err := wire.ReadVarInt(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("metadata: class %d name index: %w", i, err)
		}
		off += n

		hasSuperByte, n, err := wire.ReadBool(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("metadata: class %d super flag: %w", i, err)
		}
		off += n
		var superIdx uint32
		if hasSuperByte {
			superIdx, n, err = wire.ReadVarInt(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("metadata: class %d super index: %w", i, err)
			}
			off += n
		}

		primitive, n, err := wire.ReadBool(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("metadata: class %d primitive flag: %w", i, err)
		}
		off += n

		anns, err := readAnnotations()
		if err != nil {
			return nil, fmt.Errorf("metadata: class %d: %w", i, err)
		}

		fieldCount, n, err := wire.ReadVarInt(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("metadata: class %d field count: %w", i, err)
		}
		off += n

		fields := make([]rawField, fieldCount)
		for j := uint32(0); j < fieldCount; j++ {
			fNameIdx, n, err := wire.ReadVarInt(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("metadata: class %d field %d name: %w", i, j, err)
			}
			off += n

			fTypeID, n, err := wire.ReadVarLong(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("metadata: class %d field %d typeId: %w", i, j, err)
			}
			off += n

			array, n, err := wire.ReadBool(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("metadata: class %d field %d array flag: %w", i, j, err)
			}
			off += n

			cp, n, err := wire.ReadBool(payload[off:])
			if err != nil {
				return nil, fmt.Errorf("metadata: class %d field %d pool flag: %w", i, j, err)
			}
			off += n

			fAnns, err := readAnnotations()
			if err != nil {
				return nil, fmt.Errorf("metadata: class %d field %d: %w", i, j, err)
			}

			fields[j] = rawField{
				nameIdx:      fNameIdx,
				typeIDRef:    int64(fTypeID),
				array:        array,
				constantPool: cp,
				anns:         fAnns,
			}
		}

		raws[i] = rawClass{
			typeID:    int64(typeID),
			nameIdx:   nameIdx,
			hasSuper:  hasSuperByte,
			superIdx:  superIdx,
			primitive: primitive,
			anns:      anns,
			fields:    fields,
		}
	}

	return build(strs, raws)
}

func build(strs []string, raws []rawClass) (*Graph, error) {
	g := &Graph{
		Strings: strs,
		byID:    make(map[int64]*Class, len(raws)),
		byName:  make(map[string]*Class, len(raws)),
	}

	superNames := make(map[int64]string, len(raws))

	// Pass 1: construct every class shell.
	for _, rc := range raws {
		if _, dup := g.byID[rc.typeID]; dup {
			return nil, fmt.Errorf("metadata: duplicate typeId %d", rc.typeID)
		}
		if int(rc.nameIdx) >= len(strs) {
			return nil, fmt.Errorf("metadata: class typeId %d: name index %d out of range", rc.typeID, rc.nameIdx)
		}
		name := strs[rc.nameIdx]

		c := &Class{
			TypeID:      rc.typeID,
			Name:        name,
			Annotations: rc.anns,
			Primitive:   rc.primitive,
		}
		if rc.hasSuper {
			if int(rc.superIdx) >= len(strs) {
				return nil, fmt.Errorf("metadata: class %q: super index %d out of range", name, rc.superIdx)
			}
			c.SuperName = strs[rc.superIdx]
		}
		if err := validatePrimitive(c); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}

		c.Fields = make([]*Field, len(rc.fields))
		for i, rf := range rc.fields {
			if int(rf.nameIdx) >= len(strs) {
				return nil, fmt.Errorf("metadata: class %q field %d: name index %d out of range", name, i, rf.nameIdx)
			}
			c.Fields[i] = &Field{
				Name:         strs[rf.nameIdx],
				TypeID:       rf.typeIDRef,
				Array:        rf.array,
				ConstantPool: rf.constantPool,
				Annotations:  rf.anns,
			}
		}

		g.byID[rc.typeID] = c
		if existing, dup := g.byName[name]; dup {
			return nil, fmt.Errorf("metadata: duplicate class name %q (typeIds %d and %d)", name, existing.TypeID, c.TypeID)
		}
		g.byName[name] = c
		superNames[rc.typeID] = c.SuperName
	}

	// Pass 2: resolve every field's Type pointer and each class's Super pointer.
	for _, c := range g.byID {
		if c.SuperName != "" {
			super, ok := g.byName[c.SuperName]
			if ok {
				c.Super = super
			}
			// An unresolved super (e.g. jdk.jfr.Event itself, which has no
			// class definition of its own) is expected and is not an error;
			// IsEvent matches on the name directly.
		}
		for _, f := range c.Fields {
			target, ok := g.byID[f.TypeID]
			if !ok {
				return nil, fmt.Errorf("metadata: class %q field %q references unknown typeId %d", c.Name, f.Name, f.TypeID)
			}
			f.Type = target
		}
	}

	return g, nil
}
