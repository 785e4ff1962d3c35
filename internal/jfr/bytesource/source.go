// Package bytesource implements the random-access, endian-aware,
// mapped-or-spliced byte source described in §4.A: the leaf component every
// other JFR package reads through.
package bytesource

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// DefaultSpliceSize is the default maximum size of one mapped segment
// (1 GiB), matching the `splice_size` configuration knob in §6.
const DefaultSpliceSize = 1 << 30

// Source is a read-only, seekable view over a recording file. Files larger
// than SpliceSize are split into equal-sized segments, each mapped
// independently; reads that straddle a segment boundary copy bytes across
// the split.
type Source struct {
	file       *os.File
	segments   []mmap.MMap
	spliceSize int64
	size       int64

	pos    int64
	mark   int64
	marked bool

	closed bool
}

// Open memory-maps the file at path, splitting it into segments of at most
// spliceSize bytes (DefaultSpliceSize if spliceSize <= 0).
func Open(path string, spliceSize int64) (*Source, error) {
	if spliceSize <= 0 {
		spliceSize = DefaultSpliceSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bytesource: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("bytesource: stat %s: %w", path, err)
	}
	size := info.Size()

	src := &Source{
		file:       f,
		spliceSize: spliceSize,
		size:       size,
	}

	if size == 0 {
		return src, nil
	}

	for off := int64(0); off < size; off += spliceSize {
		segLen := spliceSize
		if off+segLen > size {
			segLen = size - off
		}
		seg, err := mmap.MapRegion(f, int(segLen), mmap.RDONLY, 0, off)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("bytesource: map segment at offset %d (len %d): %w", off, segLen, err)
		}
		src.segments = append(src.segments, seg)
	}

	return src, nil
}

// Size returns the total file size.
func (s *Source) Size() int64 { return s.size }

// Position returns the current read cursor.
func (s *Source) Position() int64 { return s.pos }

// Remaining returns the number of bytes between the cursor and EOF.
func (s *Source) Remaining() int64 { return s.size - s.pos }

// Seek moves the read cursor to an absolute offset.
func (s *Source) Seek(offset int64) error {
	if offset < 0 || offset > s.size {
		return fmt.Errorf("bytesource: seek %d out of range [0, %d]", offset, s.size)
	}
	s.pos = offset
	return nil
}

// Mark records the current position for a later Reset. Single-slot: a second
// Mark overwrites the first.
func (s *Source) Mark() {
	s.mark = s.pos
	s.marked = true
}

// Reset returns the cursor to the last Mark.
func (s *Source) Reset() error {
	if !s.marked {
		return fmt.Errorf("bytesource: reset without a prior mark")
	}
	s.pos = s.mark
	return nil
}

// segmentFor returns the segment index and in-segment offset for an absolute
// file offset.
func (s *Source) segmentFor(offset int64) (int, int64) {
	idx := int(offset / s.spliceSize)
	return idx, offset % s.spliceSize
}

// Slice returns n bytes starting at the cursor without copying when the
// range lies entirely within one segment; it copies into scratch when the
// range straddles a segment boundary. The cursor advances by n.
func (s *Source) Slice(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bytesource: negative slice length %d", n)
	}
	if int64(n) > s.Remaining() {
		return nil, fmt.Errorf("bytesource: slice of %d bytes at offset %d exceeds remaining %d", n, s.pos, s.Remaining())
	}
	if n == 0 {
		return nil, nil
	}

	startIdx, startOff := s.segmentFor(s.pos)
	seg := s.segments[startIdx]
	if startOff+int64(n) <= int64(len(seg)) {
		out := seg[startOff : startOff+int64(n)]
		s.pos += int64(n)
		return out, nil
	}

	// Straddles one or more segment boundaries: copy.
	out := make([]byte, n)
	remaining := n
	cur := s.pos
	o := 0
	for remaining > 0 {
		idx, off := s.segmentFor(cur)
		seg := s.segments[idx]
		avail := int64(len(seg)) - off
		take := int64(remaining)
		if take > avail {
			take = avail
		}
		copy(out[o:], seg[off:off+take])
		o += int(take)
		cur += take
		remaining -= int(take)
	}
	s.pos += int64(n)
	return out, nil
}

// PeekAt returns n bytes at an absolute offset without moving the cursor.
func (s *Source) PeekAt(offset int64, n int) ([]byte, error) {
	saved := s.pos
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	b, err := s.Slice(n)
	s.pos = saved
	return b, err
}

// NativeEndian reports whether order matches binary.NativeEndian, letting
// callers elide a byteswap on the hot path.
func NativeEndian(order binary.ByteOrder) bool {
	return order == binary.NativeEndian
}

// Uint16 reads a 2-byte unsigned integer in the given byte order.
func (s *Source) Uint16(order binary.ByteOrder) (uint16, error) {
	b, err := s.Slice(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

// Uint32 reads a 4-byte unsigned integer in the given byte order.
func (s *Source) Uint32(order binary.ByteOrder) (uint32, error) {
	b, err := s.Slice(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

// Uint64 reads an 8-byte unsigned integer in the given byte order.
func (s *Source) Uint64(order binary.ByteOrder) (uint64, error) {
	b, err := s.Slice(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

// Int32 reads a signed 4-byte integer in the given byte order.
func (s *Source) Int32(order binary.ByteOrder) (int32, error) {
	v, err := s.Uint32(order)
	return int32(v), err
}

// Int64 reads a signed 8-byte integer in the given byte order.
func (s *Source) Int64(order binary.ByteOrder) (int64, error) {
	v, err := s.Uint64(order)
	return int64(v), err
}

// Bytes reads n raw bytes, advancing the cursor.
func (s *Source) Bytes(n int) ([]byte, error) {
	return s.Slice(n)
}

// Close unmaps every segment and closes the file. Idempotent.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for _, seg := range s.segments {
		if err := seg.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.segments = nil
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
