package metadata

import (
	"testing"

	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
	"github.com/stretchr/testify/require"
)

// metadataBuilder assembles a metadata-event payload by hand, mirroring the
// wire layout Decode expects, for use as test fixtures.
type metadataBuilder struct {
	strings []string
	classes []testClass
}

type testField struct {
	name      string
	typeID    int64
	array     bool
	pool      bool
}

type testClass struct {
	typeID    int64
	name      string
	superName string // "" means no super
	primitive bool
	fields    []testField
}

func (b *metadataBuilder) intern(s string) uint32 {
	for i, existing := range b.strings {
		if existing == s {
			return uint32(i)
		}
	}
	b.strings = append(b.strings, s)
	return uint32(len(b.strings) - 1)
}

func (b *metadataBuilder) addClass(c testClass) {
	b.classes = append(b.classes, c)
}

func (b *metadataBuilder) build() []byte {
	var buf []byte

	buf = wire.AppendVarLong(buf, uint64(len(b.strings)))
	for _, s := range b.strings {
		buf = append(buf, byte(wire.StringUTF8))
		buf = wire.AppendVarLong(buf, uint64(len(s)))
		buf = append(buf, s...)
	}

	buf = wire.AppendVarLong(buf, uint64(len(b.classes)))
	for _, c := range b.classes {
		buf = wire.AppendVarLong(buf, uint64(c.typeID))
		buf = wire.AppendVarLong(buf, uint64(b.intern(c.name)))
		if c.superName != "" {
			buf = append(buf, 1)
			buf = wire.AppendVarLong(buf, uint64(b.intern(c.superName)))
		} else {
			buf = append(buf, 0)
		}
		if c.primitive {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = wire.AppendVarLong(buf, 0) // no class annotations

		buf = wire.AppendVarLong(buf, uint64(len(c.fields)))
		for _, f := range c.fields {
			buf = wire.AppendVarLong(buf, uint64(b.intern(f.name)))
			buf = wire.AppendVarLong(buf, uint64(f.typeID))
			if f.array {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			if f.pool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			buf = wire.AppendVarLong(buf, 0) // no field annotations
		}
	}
	return buf
}

// build() writes the string table before encoding the classes, so a name
// first interned while a class is encoded is missing from that table. To
// keep every index valid, pre-register every class, super and field name
// before calling build.
func (b *metadataBuilder) internAll(names ...string) {
	for _, n := range names {
		b.intern(n)
	}
}

func simpleGraph(t *testing.T) *Graph {
	t.Helper()
	b := &metadataBuilder{}
	b.internAll("int", "jdk.jfr.Event", "jdk.ExecutionSample", "startTime", "sampledThread", "jdk.types.Thread", "name")

	b.addClass(testClass{typeID: 1, name: "int", primitive: true})
	b.addClass(testClass{typeID: 3, name: "jdk.types.Thread", fields: []testField{
		{name: "name", typeID: 1},
	}})
	b.addClass(testClass{typeID: 2, name: "jdk.ExecutionSample", superName: "jdk.jfr.Event", fields: []testField{
		{name: "startTime", typeID: 1},
		{name: "sampledThread", typeID: 3},
	}})

	payload := b.build()
	g, err := Decode(payload)
	require.NoError(t, err)
	return g
}

func TestDecode_ResolvesFieldAndSuperPointers(t *testing.T) {
	g := simpleGraph(t)

	sample, ok := g.ByName("jdk.ExecutionSample")
	require.True(t, ok)
	require.True(t, sample.IsEvent())

	st, ok := sample.FieldByName("startTime")
	require.True(t, ok)
	require.NotNil(t, st.Type)
	require.Equal(t, "int", st.Type.Name)
	require.True(t, st.Type.Primitive)

	thread, ok := sample.FieldByName("sampledThread")
	require.True(t, ok)
	require.Equal(t, "jdk.types.Thread", thread.Type.Name)
}

func TestDecode_ByTypeID(t *testing.T) {
	g := simpleGraph(t)
	c, ok := g.ByTypeID(2)
	require.True(t, ok)
	require.Equal(t, "jdk.ExecutionSample", c.Name)
}

func TestDecode_DuplicateTypeIDFails(t *testing.T) {
	b := &metadataBuilder{}
	b.internAll("int", "A")
	b.addClass(testClass{typeID: 1, name: "int", primitive: true})
	b.addClass(testClass{typeID: 1, name: "A"})
	_, err := Decode(b.build())
	require.Error(t, err)
}

func TestDecode_UnresolvedFieldTypeFails(t *testing.T) {
	b := &metadataBuilder{}
	b.internAll("A", "missing", "x")
	b.addClass(testClass{typeID: 1, name: "A", fields: []testField{{name: "x", typeID: 99}}})
	_, err := Decode(b.build())
	require.Error(t, err)
}

func TestDecode_PrimitiveFlagOnUnknownNameFails(t *testing.T) {
	b := &metadataBuilder{}
	b.internAll("com.example.Weird")
	b.addClass(testClass{typeID: 1, name: "com.example.Weird", primitive: true})
	_, err := Decode(b.build())
	require.Error(t, err)
}

func TestClass_LabelDescriptionAnnotations(t *testing.T) {
	c := &Class{
		Annotations: []Annotation{
			{Name: "jdk.jfr.Label", Value: "Execution Sample"},
			{Name: "jdk.jfr.Description", Value: "A stack trace sample"},
		},
	}
	label, ok := c.Label()
	require.True(t, ok)
	require.Equal(t, "Execution Sample", label)

	desc, ok := c.Description()
	require.True(t, ok)
	require.Equal(t, "A stack trace sample", desc)

	_, ok = c.Label()
	require.True(t, ok) // repeated call still works after fieldIndex-style caching elsewhere
}
