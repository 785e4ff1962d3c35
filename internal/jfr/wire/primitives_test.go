package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFloat32(t *testing.T) {
	want := float32(3.14159)
	bits := math.Float32bits(want)
	buf := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
	got, n, err := ReadFloat32(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, want, got)
}

func TestReadFloat64(t *testing.T) {
	want := math.Pi
	bits := math.Float64bits(want)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	got, n, err := ReadFloat64(buf)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, want, got)
}

func TestReadBool(t *testing.T) {
	v, n, err := ReadBool([]byte{1})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.True(t, v)

	v, _, err = ReadBool([]byte{0})
	require.NoError(t, err)
	require.False(t, v)

	v, _, err = ReadBool([]byte{42})
	require.NoError(t, err)
	require.True(t, v)
}

func TestReadByteShortIntLong(t *testing.T) {
	buf := AppendVarLong(nil, uint64(int8(-5))&0xff)
	b, _, err := ReadByte(buf)
	require.NoError(t, err)
	require.Equal(t, int8(-5), b)

	buf = AppendVarLong(nil, uint64(int16(-1000))&0xffff)
	s, _, err := ReadShort(buf)
	require.NoError(t, err)
	require.Equal(t, int16(-1000), s)

	buf = AppendVarLong(nil, uint64(int32(-70000))&0xffffffff)
	i, _, err := ReadInt(buf)
	require.NoError(t, err)
	require.Equal(t, int32(-70000), i)

	buf = AppendVarLong(nil, uint64(int64(-1)))
	l, _, err := ReadLong(buf)
	require.NoError(t, err)
	require.Equal(t, int64(-1), l)
}

func TestReadChar_Unsigned(t *testing.T) {
	buf := AppendVarLong(nil, 65535)
	c, _, err := ReadChar(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(65535), c)
}
