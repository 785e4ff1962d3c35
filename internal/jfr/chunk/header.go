// Package chunk implements the chunk scanner (§4.E): reads a chunk header,
// drives metadata and constant-pool population, then iterates events,
// notifying a Listener at each phase boundary.
package chunk

import (
	"encoding/binary"
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/bytesource"
)

// Magic is the 4-byte tag every chunk begins with.
var Magic = [4]byte{'F', 'L', 'R', 0}

// Header is the fixed-size prefix of a chunk (§3, §6).
type Header struct {
	MajorVersion  uint16
	MinorVersion  uint16
	Size          uint64
	ConstantPoolOffset uint64 // relative to chunk start
	MetadataOffset     uint64 // relative to chunk start
	StartTimeNanos int64
	DurationNanos  int64
	StartTicks     int64
	TicksPerSecond int64
	Features       uint32

	// Offset is the absolute file offset at which this chunk begins.
	Offset int64
}

// HeaderSize is the number of bytes occupied by the fixed header fields
// (magic, versions, size, two offsets, four time fields, feature flags).
const HeaderSize = 4 + 2 + 2 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 4

// ReadHeader seeks the source to chunkOffset (the absolute start of the
// chunk) and reads and validates the chunk header there.
func ReadHeader(src *bytesource.Source, chunkOffset int64) (*Header, error) {
	if err := src.Seek(chunkOffset); err != nil {
		return nil, fmt.Errorf("chunk: seek to header: %w", err)
	}

	magic, err := src.Bytes(4)
	if err != nil {
		return nil, fmt.Errorf("chunk: read magic: %w", err)
	}
	if magic[0] != Magic[0] || magic[1] != Magic[1] || magic[2] != Magic[2] || magic[3] != Magic[3] {
		return nil, fmt.Errorf("chunk: bad magic %v at offset %d", magic, chunkOffset)
	}

	major, err := src.Uint16(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: major version: %w", err)
	}
	minor, err := src.Uint16(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: minor version: %w", err)
	}
	size, err := src.Uint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: size: %w", err)
	}
	cpOff, err := src.Uint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: constant pool offset: %w", err)
	}
	metaOff, err := src.Uint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: metadata offset: %w", err)
	}
	startTime, err := src.Int64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: start time: %w", err)
	}
	duration, err := src.Int64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: duration: %w", err)
	}
	startTicks, err := src.Int64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: start ticks: %w", err)
	}
	ticksPerSec, err := src.Int64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: ticks per second: %w", err)
	}
	features, err := src.Uint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("chunk: feature flags: %w", err)
	}

	h := &Header{
		MajorVersion:       major,
		MinorVersion:       minor,
		Size:               size,
		ConstantPoolOffset: cpOff,
		MetadataOffset:     metaOff,
		StartTimeNanos:     startTime,
		DurationNanos:      duration,
		StartTicks:         startTicks,
		TicksPerSecond:     ticksPerSec,
		Features:           features,
		Offset:             chunkOffset,
	}

	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) validate() error {
	if h.Size < uint64(HeaderSize) {
		return fmt.Errorf("chunk: declared size %d smaller than header size %d", h.Size, HeaderSize)
	}
	if h.ConstantPoolOffset >= h.Size {
		return fmt.Errorf("chunk: constant pool offset %d outside chunk bounds (size %d)", h.ConstantPoolOffset, h.Size)
	}
	if h.MetadataOffset >= h.Size {
		return fmt.Errorf("chunk: metadata offset %d outside chunk bounds (size %d)", h.MetadataOffset, h.Size)
	}
	return nil
}

// End returns the absolute file offset immediately after this chunk.
func (h *Header) End() int64 {
	return h.Offset + int64(h.Size)
}

// AbsConstantPoolOffset returns the absolute file offset of the constant-pool section.
func (h *Header) AbsConstantPoolOffset() int64 { return h.Offset + int64(h.ConstantPoolOffset) }

// AbsMetadataOffset returns the absolute file offset of the metadata event.
func (h *Header) AbsMetadataOffset() int64 { return h.Offset + int64(h.MetadataOffset) }

// AbsEventsStart returns the absolute file offset of the first event record,
// immediately after the fixed header.
func (h *Header) AbsEventsStart() int64 { return h.Offset + int64(HeaderSize) }
