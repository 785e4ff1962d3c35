// Package typed implements the typed projector (§4.G): given a
// user-declared schema of named typed accessors, it compiles a field-order
// decode script once per structural metadata shape and reuses it across
// every chunk and recording sharing that shape.
package typed

// Kind identifies a typed accessor's declared shape (§4.G binding rule:
// accessor result type -> metadata field type, primitives widening-
// compatible, compounds recursively projected).
type Kind int

const (
	KindBoolean Kind = iota
	KindByte
	KindShort
	KindChar
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindCompound
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindShort:
		return "short"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindCompound:
		return "compound"
	default:
		return "unknown"
	}
}

// Accessor is one named, typed field projection within a Schema. Name
// doubles as the metadata field name it binds to. Raw surfaces a
// constant-pool field's wire index instead of its resolved value. Nested
// recursively projects a compound field through another Schema.
type Accessor struct {
	Name   string
	Kind   Kind
	Raw    bool
	Nested *Schema
}

// Schema is a user-declared, named set of typed accessors for one metadata
// class (§9 "schema binding without reflection"). Build with
// NewSchema(...).Field(...)....
type Schema struct {
	ClassName string
	Accessors []Accessor

	byName map[string]int
}

// NewSchema starts a schema for the metadata class with the given qualified
// name (e.g. "jdk.ExecutionSample").
func NewSchema(className string) *Schema {
	return &Schema{ClassName: className, byName: make(map[string]int)}
}

// Field declares an accessor for a metadata field name with the given kind.
func (s *Schema) Field(name string, kind Kind) *Schema {
	return s.add(Accessor{Name: name, Kind: kind})
}

// RawField declares a raw accessor over a constant-pool-flagged field: its
// wire index is surfaced verbatim, never resolved against the pool.
func (s *Schema) RawField(name string, kind Kind) *Schema {
	return s.add(Accessor{Name: name, Kind: kind, Raw: true})
}

// NestedField declares an accessor for a compound field, recursively
// projected through the given nested schema.
func (s *Schema) NestedField(name string, nested *Schema) *Schema {
	return s.add(Accessor{Name: name, Kind: KindCompound, Nested: nested})
}

func (s *Schema) add(acc Accessor) *Schema {
	s.byName[acc.Name] = len(s.Accessors)
	s.Accessors = append(s.Accessors, acc)
	return s
}

func (s *Schema) accessor(fieldName string) (Accessor, bool) {
	idx, ok := s.byName[fieldName]
	if !ok {
		return Accessor{}, false
	}
	return s.Accessors[idx], true
}
