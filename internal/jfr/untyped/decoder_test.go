package untyped

import (
	"errors"
	"testing"

	"github.com/arvindraghu/jfrstream/internal/jfr/constpool"
	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/value"
	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
	"github.com/stretchr/testify/require"
)

type fxField struct {
	name   string
	typeID int64
	array  bool
	pool   bool
}

type fxClass struct {
	typeID    int64
	name      string
	superName string
	primitive bool
	fields    []fxField
}

func buildGraph(t *testing.T, classes []fxClass) *metadata.Graph {
	t.Helper()
	var strs []string
	intern := func(s string) uint32 {
		for i, e := range strs {
			if e == s {
				return uint32(i)
			}
		}
		strs = append(strs, s)
		return uint32(len(strs) - 1)
	}
	for _, c := range classes {
		intern(c.name)
		if c.superName != "" {
			intern(c.superName)
		}
		for _, f := range c.fields {
			intern(f.name)
		}
	}

	var buf []byte
	buf = wire.AppendVarLong(buf, uint64(len(strs)))
	for _, s := range strs {
		buf = append(buf, byte(wire.StringUTF8))
		buf = wire.AppendVarLong(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	buf = wire.AppendVarLong(buf, uint64(len(classes)))
	for _, c := range classes {
		buf = wire.AppendVarLong(buf, uint64(c.typeID))
		buf = wire.AppendVarLong(buf, uint64(intern(c.name)))
		if c.superName != "" {
			buf = append(buf, 1)
			buf = wire.AppendVarLong(buf, uint64(intern(c.superName)))
		} else {
			buf = append(buf, 0)
		}
		if c.primitive {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = wire.AppendVarLong(buf, 0)
		buf = wire.AppendVarLong(buf, uint64(len(c.fields)))
		for _, f := range c.fields {
			buf = wire.AppendVarLong(buf, uint64(intern(f.name)))
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
			buf = wire.AppendVarLong(buf, 0)
		}
	}
	g, err := metadata.Decode(buf)
	require.NoError(t, err)
	return g
}

func threadSampleGraph(t *testing.T) *metadata.Graph {
	return buildGraph(t, []fxClass{
		{typeID: 1, name: "long", primitive: true},
		{typeID: 2, name: "java.lang.String", primitive: true},
		{typeID: 3, name: "jdk.types.Thread", fields: []fxField{
			{name: "name", typeID: 2},
		}},
		{typeID: 100, name: "jdk.ExecutionSample", fields: []fxField{
			{name: "startTime", typeID: 1},
			{name: "sampledThread", typeID: 3},
			{name: "stack", typeID: 3, array: true},
		}},
	})
}

func encodeThread(name string) []byte {
	var buf []byte
	buf = append(buf, byte(wire.StringUTF8))
	buf = wire.AppendVarLong(buf, uint64(len(name)))
	buf = append(buf, name...)
	return buf
}

func TestNameSet_SortedLookup(t *testing.T) {
	ns := newNameSet([]string{"zeta", "alpha", "mid"})
	require.Equal(t, 3, ns.Len())
	require.Equal(t, "alpha", ns.NameAt(0))
	require.Equal(t, "mid", ns.NameAt(1))
	require.Equal(t, "zeta", ns.NameAt(2))

	i, ok := ns.IndexOf("mid")
	require.True(t, ok)
	require.Equal(t, 1, i)

	_, ok = ns.IndexOf("missing")
	require.False(t, ok)
}

func TestBind_SharesNameSetFlyweightAcrossNestedOccurrences(t *testing.T) {
	g := threadSampleGraph(t)
	dec, err := Bind(g, "jdk.ExecutionSample", Eager)
	require.NoError(t, err)

	r := value.NewReader(g, constpool.NewStore())
	rec1, _, err := dec.Decode(r, encodeExecutionSample(1, "a"), nil)
	require.NoError(t, err)
	rec2, _, err := dec.Decode(r, encodeExecutionSample(2, "b"), nil)
	require.NoError(t, err)

	thr1, err := rec1.Value("sampledThread")
	require.NoError(t, err)
	thr2, err := rec2.Value("sampledThread")
	require.NoError(t, err)

	require.Same(t, thr1.(*Record).Names, thr2.(*Record).Names)
	require.Same(t, dec.nameSets["jdk.types.Thread"], thr1.(*Record).Names)
}

func TestBind_UnknownClassFails(t *testing.T) {
	g := threadSampleGraph(t)
	_, err := Bind(g, "does.not.Exist", Eager)
	require.Error(t, err)
}

func encodeExecutionSample(startTime int64, threadName string) []byte {
	var buf []byte
	buf = wire.AppendVarLong(buf, uint64(startTime))
	buf = append(buf, encodeThread(threadName)...)
	buf = wire.AppendVarLong(buf, 2) // stack array len
	buf = append(buf, encodeThread("t1")...)
	buf = append(buf, encodeThread("t2")...)
	return buf
}

func TestDecode_EagerFullyMaterializes(t *testing.T) {
	g := threadSampleGraph(t)
	dec, err := Bind(g, "jdk.ExecutionSample", Eager)
	require.NoError(t, err)

	buf := encodeExecutionSample(42, "main")
	r := value.NewReader(g, constpool.NewStore())
	rec, n, err := dec.Decode(r, buf, nil)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	st, err := rec.Value("startTime")
	require.NoError(t, err)
	require.Equal(t, int64(42), st)

	thr, err := rec.Value("sampledThread")
	require.NoError(t, err)
	threadRec, ok := thr.(*Record)
	require.True(t, ok)
	name, err := threadRec.Value("name")
	require.NoError(t, err)
	require.Equal(t, "main", name)

	stack, err := rec.Value("stack")
	require.NoError(t, err)
	elems, ok := stack.([]any)
	require.True(t, ok)
	require.Len(t, elems, 2)
}

func TestDecode_LazyYieldsThunkResolvedOnFirstAccess(t *testing.T) {
	g := threadSampleGraph(t)
	dec, err := Bind(g, "jdk.ExecutionSample", Lazy)
	require.NoError(t, err)

	buf := encodeExecutionSample(1, "worker")
	r := value.NewReader(g, constpool.NewStore())
	chunkDone := false
	rec, _, err := dec.Decode(r, buf, &chunkDone)
	require.NoError(t, err)

	idx, ok := rec.Names.IndexOf("sampledThread")
	require.True(t, ok)
	_, isThunk := rec.Values[idx].(*thunk)
	require.True(t, isThunk)

	thr, err := rec.Value("sampledThread")
	require.NoError(t, err)
	threadRec := thr.(*Record)
	name, err := threadRec.Value("name")
	require.NoError(t, err)
	require.Equal(t, "worker", name)

	// Second access returns the cached resolved value, no longer a thunk.
	_, isThunk = rec.Values[idx].(*thunk)
	require.False(t, isThunk)
}

func TestDecode_LazyThunkInvalidatedAfterChunkEnd(t *testing.T) {
	g := threadSampleGraph(t)
	dec, err := Bind(g, "jdk.ExecutionSample", Lazy)
	require.NoError(t, err)

	buf := encodeExecutionSample(1, "worker")
	r := value.NewReader(g, constpool.NewStore())
	chunkDone := false
	rec, _, err := dec.Decode(r, buf, &chunkDone)
	require.NoError(t, err)

	chunkDone = true
	_, err = rec.Value("sampledThread")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrThunkInvalidated))
}

func TestDecode_SparseThunksEachArrayElement(t *testing.T) {
	g := threadSampleGraph(t)
	dec, err := Bind(g, "jdk.ExecutionSample", Sparse)
	require.NoError(t, err)

	buf := encodeExecutionSample(1, "worker")
	r := value.NewReader(g, constpool.NewStore())
	chunkDone := false
	rec, _, err := dec.Decode(r, buf, &chunkDone)
	require.NoError(t, err)

	stackIdx, ok := rec.Names.IndexOf("stack")
	require.True(t, ok)
	elems, ok := rec.Values[stackIdx].([]any)
	require.True(t, ok)
	require.Len(t, elems, 2)
	_, isThunk := elems[0].(*thunk)
	require.True(t, isThunk)

	// sampledThread is a non-array compound field: Sparse falls back to a
	// single whole-field thunk, the same as Lazy.
	sampledIdx, ok := rec.Names.IndexOf("sampledThread")
	require.True(t, ok)
	_, isThunk = rec.Values[sampledIdx].(*thunk)
	require.True(t, isThunk)
}

func TestRecord_UnknownFieldNameErrors(t *testing.T) {
	g := threadSampleGraph(t)
	dec, err := Bind(g, "jdk.ExecutionSample", Eager)
	require.NoError(t, err)

	buf := encodeExecutionSample(1, "worker")
	r := value.NewReader(g, constpool.NewStore())
	rec, _, err := dec.Decode(r, buf, nil)
	require.NoError(t, err)

	_, err = rec.Value("doesNotExist")
	require.Error(t, err)
}
