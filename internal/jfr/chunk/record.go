package chunk

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/bytesource"
	"github.com/arvindraghu/jfrstream/internal/jfr/wire"
)

// ReservedMetadataTypeID and ReservedCheckpointTypeID are the two typeIds
// §6 reserves for the metadata event and checkpoint events, respectively.
const (
	ReservedMetadataTypeID   int64 = 0
	ReservedCheckpointTypeID int64 = 1
)

// recordFrame is one decoded (size, typeId, payload) record header, per §3
// "Event record" and §6: the varint `size` covers everything that follows it
// (the typeId varint plus the field payload), so `End` is exactly where the
// next record begins.
type recordFrame struct {
	Start     int64
	TypeID    int64
	Payload   []byte
	End       int64
}

// readRecordFrame reads one record at the source's current position. It
// reads the whole declared-size span into memory up front (via Slice) so
// that `Payload` is addressable without further source reads, and so a
// declared size exceeding the remaining chunk bytes is caught immediately.
func readRecordFrame(src *bytesource.Source, chunkEnd int64) (recordFrame, error) {
	start := src.Position()

	sizeBuf, err := src.PeekAt(start, wire.MaxVarIntBytes)
	if err != nil {
		// Near EOF: shrink the peek window to what remains.
		remaining := int(chunkEnd - start)
		if remaining <= 0 {
			return recordFrame{}, fmt.Errorf("record: no bytes remaining at offset %d", start)
		}
		sizeBuf, err = src.PeekAt(start, remaining)
		if err != nil {
			return recordFrame{}, fmt.Errorf("record: read size varint at offset %d: %w", start, err)
		}
	}
	size, sizeLen, err := wire.ReadVarLong(sizeBuf)
	if err != nil {
		return recordFrame{}, fmt.Errorf("record: size varint at offset %d: %w", start, err)
	}

	recordEnd := start + int64(sizeLen) + int64(size)
	if recordEnd > chunkEnd {
		return recordFrame{}, fmt.Errorf("record: declared size %d at offset %d exceeds chunk bound %d", size, start, chunkEnd)
	}

	if err := src.Seek(start + int64(sizeLen)); err != nil {
		return recordFrame{}, err
	}
	body, err := src.Slice(int(size))
	if err != nil {
		return recordFrame{}, fmt.Errorf("record: read body at offset %d: %w", start, err)
	}

	typeID, typeLen, err := wire.ReadVarLong(body)
	if err != nil {
		return recordFrame{}, fmt.Errorf("record: typeId at offset %d: %w", start+int64(sizeLen), err)
	}

	return recordFrame{
		Start:   start,
		TypeID:  int64(typeID),
		Payload: body[typeLen:],
		End:     recordEnd,
	}, nil
}
