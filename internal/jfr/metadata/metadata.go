// Package metadata reconstructs the per-chunk type system (§4.C): the
// string table, the class/field/annotation graph, and the structural
// fingerprint used to key decoder reuse across chunks and recordings.
package metadata

import "fmt"

// Primitive names recognized by the nine built-in primitive classes, per §3.
var primitiveNames = map[string]bool{
	"int": true, "long": true, "float": true, "double": true,
	"boolean": true, "byte": true, "short": true, "char": true,
	"java.lang.String": true,
}

// Annotation is a (name, value) pair attached to a class or field. Unknown
// annotation names are preserved verbatim but never consulted for decoding.
type Annotation struct {
	Name  string
	Value string
}

// Field describes one metadata field: name, a reference to its class
// (resolved in a second pass), array-ness, and whether it is constant-pool
// encoded.
type Field struct {
	Name        string
	TypeID      int64 // raw typeId reference as read from the wire
	Type        *Class
	Array       bool
	ConstantPool bool
	Annotations []Annotation
}

// Class is a metadata class identified by a typeId unique within the chunk.
type Class struct {
	TypeID      int64
	Name        string
	SuperName   string
	Super       *Class
	Fields      []*Field
	Annotations []Annotation
	Primitive   bool // instances use a primitive-encoded form

	fieldIndex map[string]int
}

// IsEvent reports whether this class's super-type chain resolves to
// jdk.jfr.Event.
func (c *Class) IsEvent() bool {
	for s := c; s != nil; s = s.Super {
		if s.SuperName == "jdk.jfr.Event" {
			return true
		}
	}
	return false
}

// FieldByName looks up a field by name in O(1) after the class is sealed.
func (c *Class) FieldByName(name string) (*Field, bool) {
	if c.fieldIndex == nil {
		c.buildIndex()
	}
	idx, ok := c.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return c.Fields[idx], true
}

func (c *Class) buildIndex() {
	c.fieldIndex = make(map[string]int, len(c.Fields))
	for i, f := range c.Fields {
		c.fieldIndex[f.Name] = i
	}
}

// annotationValue returns the value of the first annotation with the given
// name, if any.
func annotationValue(anns []Annotation, name string) (string, bool) {
	for _, a := range anns {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Label returns the class's jdk.jfr.Label annotation value, if present.
func (c *Class) Label() (string, bool) { return annotationValue(c.Annotations, "jdk.jfr.Label") }

// Description returns the class's jdk.jfr.Description annotation value, if present.
func (c *Class) Description() (string, bool) {
	return annotationValue(c.Annotations, "jdk.jfr.Description")
}

func validatePrimitive(c *Class) error {
	if c.Primitive && !primitiveNames[c.Name] {
		return fmt.Errorf("class %q flagged primitive but is not one of the nine built-in primitives", c.Name)
	}
	return nil
}
