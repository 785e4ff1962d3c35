package wire

import (
	"fmt"
	"unicode/utf16"
)

// StringTag is the one-byte discriminator prefixing every encoded string, per §4.B.
type StringTag byte

const (
	StringNull    StringTag = 0 // null
	StringEmpty   StringTag = 1 // empty string
	StringPoolRef StringTag = 2 // varint index into a constant pool
	StringUTF8    StringTag = 3 // UTF-8, varint length prefix
	StringChars   StringTag = 4 // 16-bit chars, each varint-encoded
	StringLatin1  StringTag = 5 // ISO-8859-1, varint length prefix
)

// DecodedString is the result of decoding one tagged string field. For tag 2
// (pool reference) Value is unset and PoolIndex carries the varint index the
// caller must resolve against the relevant constant pool (the metadata
// string pool or the chunk's java.lang.String pool). Every other tag
// resolves Value directly and IsNull distinguishes tag 0 from an empty tag-1
// string.
type DecodedString struct {
	Tag       StringTag
	Value     string
	PoolIndex uint32
	IsNull    bool
}

// ReadString decodes one tagged string field and returns the number of bytes
// consumed.
func ReadString(buf []byte) (DecodedString, int, error) {
	if len(buf) < 1 {
		return DecodedString{}, 0, fmt.Errorf("truncated string: missing tag byte")
	}
	tag := StringTag(buf[0])
	rest := buf[1:]
	consumed := 1

	switch tag {
	case StringNull:
		return DecodedString{Tag: tag, IsNull: true}, consumed, nil
	case StringEmpty:
		return DecodedString{Tag: tag, Value: ""}, consumed, nil
	case StringPoolRef:
		idx, n, err := ReadVarInt(rest)
		if err != nil {
			return DecodedString{}, 0, fmt.Errorf("string tag %d: %w", tag, err)
		}
		return DecodedString{Tag: tag, PoolIndex: idx}, consumed + n, nil
	case StringUTF8:
		length, n, err := ReadVarInt(rest)
		if err != nil {
			return DecodedString{}, 0, fmt.Errorf("string tag %d: bad length: %w", tag, err)
		}
		consumed += n
		rest = rest[n:]
		if uint32(len(rest)) < length {
			return DecodedString{}, 0, fmt.Errorf("string tag %d: truncated UTF-8 payload: need %d, have %d", tag, length, len(rest))
		}
		return DecodedString{Tag: tag, Value: string(rest[:length])}, consumed + int(length), nil
	case StringChars:
		count, n, err := ReadVarInt(rest)
		if err != nil {
			return DecodedString{}, 0, fmt.Errorf("string tag %d: bad length: %w", tag, err)
		}
		consumed += n
		rest = rest[n:]
		units := make([]uint16, count)
		for i := uint32(0); i < count; i++ {
			v, m, err := ReadVarLong(rest)
			if err != nil {
				return DecodedString{}, 0, fmt.Errorf("string tag %d: char %d: %w", tag, i, err)
			}
			units[i] = uint16(v)
			rest = rest[m:]
			consumed += m
		}
		return DecodedString{Tag: tag, Value: string(utf16.Decode(units))}, consumed, nil
	case StringLatin1:
		length, n, err := ReadVarInt(rest)
		if err != nil {
			return DecodedString{}, 0, fmt.Errorf("string tag %d: bad length: %w", tag, err)
		}
		consumed += n
		rest = rest[n:]
		if uint32(len(rest)) < length {
			return DecodedString{}, 0, fmt.Errorf("string tag %d: truncated Latin-1 payload: need %d, have %d", tag, length, len(rest))
		}
		runes := make([]rune, length)
		for i := uint32(0); i < length; i++ {
			runes[i] = rune(rest[i])
		}
		return DecodedString{Tag: tag, Value: string(runes)}, consumed + int(length), nil
	default:
		return DecodedString{}, 0, fmt.Errorf("impossible string tag %d", tag)
	}
}
