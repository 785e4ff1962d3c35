package chunk

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/bytesource"
	"github.com/arvindraghu/jfrstream/internal/jfr/constpool"
	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/value"
)

// ErrorPolicy controls what the scanner does when an event's decoder fails,
// per §6 `on_decoder_error`.
type ErrorPolicy int

const (
	// SkipEvent skips to eventStart+size and reports the error (default).
	SkipEvent ErrorPolicy = iota
	// AbortChunk stops scanning the current chunk and moves to the next one.
	AbortChunk
	// AbortRun stops the entire parsing run.
	AbortRun
)

// Dispatcher is the pluggable per-event handler the scanner invokes once the
// chunk's metadata and constant pools are ready. Implemented by
// internal/jfr/dispatch.
type Dispatcher interface {
	// BindChunk is called once, after constant pools finalize and before
	// the first event is read, so the dispatcher can resolve its decoders
	// against this chunk's graph and pool-aware value reader.
	BindChunk(h *Header, g *metadata.Graph, r *value.Reader) error
	// Dispatch delivers one event's payload. A returned error is treated
	// as a per-event decode failure subject to the configured
	// on_decoder_error policy, except a failed handler's error, which
	// aborts the run regardless of policy.
	Dispatch(typeID int64, payload []byte) error
	// Aborted reports whether a handler has called Control.Abort during
	// this run; once true the scanner delivers no further events.
	Aborted() bool
}

// Listener observes chunk-scan lifecycle events; any hook that returns a
// bool may return false to end processing of the remainder of the chunk
// early (§4.E).
type Listener interface {
	OnRecordingStart()
	OnChunkStart(h *Header) bool
	OnMetadata(g *metadata.Graph) bool
	OnCheckpoint() bool
	OnEvent(typeID int64, startPos int64, rawSize int, payloadSize int) bool
	OnChunkEnd(skipped bool)
	OnRecordingEnd()
}

// scanFailureTypeID marks a SkippedEvent produced by a chunk-fatal scan
// failure (metadata/pool/event-frame read error) rather than a per-event
// dispatch failure. A header read failure is returned as an error instead. No real event typeId is ever negative.
const scanFailureTypeID int64 = -1

// SkippedEvent records one event the scanner could not deliver, or (with
// TypeID == scanFailureTypeID) a chunk-fatal scan failure that ended the
// chunk early.
type SkippedEvent struct {
	TypeID int64
	Offset int64
	Err    error
}

// ScanErrorKind classifies how a chunk-scan failure propagates (§7).
type ScanErrorKind int

const (
	// ScanMalformedInput is a wire-level violation: a truncated or invalid
	// varint, an out-of-place reserved typeId, or a record whose declared
	// size runs past the chunk bound. Fatal to the current chunk — unless
	// no header could be read at all, in which case there is no next-chunk
	// offset to resume from and the run ends regardless of policy.
	ScanMalformedInput ScanErrorKind = iota
	// ScanCorruptMetadata is a metadata event that failed to decode
	// (duplicate class, unresolved typeId, field type mismatch). Fatal to
	// the run.
	ScanCorruptMetadata
	// ScanCorruptPool is an unresolved constant-pool reference surviving to
	// fixpoint. Fatal to the current chunk.
	ScanCorruptPool
)

// ScanError wraps a chunk-scan failure with its §7 propagation class and the
// file offset at which it occurred.
type ScanError struct {
	Kind   ScanErrorKind
	Offset int64
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("chunk: scan failure at offset %d: %v", e.Offset, e.Err)
}
func (e *ScanError) Unwrap() error { return e.Err }

// ScanResult summarizes one chunk's scan.
type ScanResult struct {
	Header   *Header
	Graph    *metadata.Graph
	Skipped  []SkippedEvent
	Aborted  bool // true if the chunk ended early (failure, policy, listener stop or Control.Abort)
	RunAbort bool // true if the run ends after this chunk (AbortRun policy, failed handler or Control.Abort)
}

// abort ends the chunk on a chunk-fatal scan failure (§7 propagation): the
// failure is appended to Skipped, onChunkEnd(skipped=true) fires, and the
// caller resumes at Header.End() — unless policy is AbortRun, which also
// ends the run.
func (r *ScanResult) abort(listener Listener, policy ErrorPolicy, kind ScanErrorKind, offset int64, cause error) (*ScanResult, error) {
	r.Aborted = true
	r.Skipped = append(r.Skipped, SkippedEvent{
		TypeID: scanFailureTypeID,
		Offset: offset,
		Err:    &ScanError{Kind: kind, Offset: offset, Err: cause},
	})
	if policy == AbortRun {
		r.RunAbort = true
	}
	if listener != nil {
		listener.OnChunkEnd(true)
	}
	return r, nil
}

// ScanChunk runs the full 5-step protocol of §4.E over one chunk starting at
// chunkOffset: header, metadata, constant pools, events, chunk end.
func ScanChunk(src *bytesource.Source, chunkOffset int64, listener Listener, disp Dispatcher, policy ErrorPolicy) (*ScanResult, error) {
	header, err := ReadHeader(src, chunkOffset)
	if err != nil {
		// No header means no known next-chunk offset to resume scanning
		// from; this always ends the run, regardless of policy.
		return nil, &ScanError{Kind: ScanMalformedInput, Offset: chunkOffset, Err: fmt.Errorf("read header: %w", err)}
	}

	if listener != nil && !listener.OnChunkStart(header) {
		listener.OnChunkEnd(true)
		return &ScanResult{Header: header, Aborted: true}, nil
	}

	// Phase 2: metadata.
	if err := src.Seek(header.AbsMetadataOffset()); err != nil {
		return (&ScanResult{Header: header}).abort(listener, policy, ScanMalformedInput, header.AbsMetadataOffset(), fmt.Errorf("seek to metadata: %w", err))
	}
	metaFrame, err := readRecordFrame(src, header.End())
	if err != nil {
		return (&ScanResult{Header: header}).abort(listener, policy, ScanMalformedInput, header.AbsMetadataOffset(), fmt.Errorf("read metadata record: %w", err))
	}
	if metaFrame.TypeID != ReservedMetadataTypeID {
		return (&ScanResult{Header: header}).abort(listener, policy, ScanMalformedInput, metaFrame.Start, fmt.Errorf("metadata offset does not point at a metadata record (typeId %d)", metaFrame.TypeID))
	}
	graph, err := metadata.Decode(metaFrame.Payload)
	if err != nil {
		// Metadata corruption is fatal to the whole run, not just this
		// chunk (§7): the rest of the recording cannot be trusted to
		// describe its own events correctly.
		return nil, &ScanError{Kind: ScanCorruptMetadata, Offset: metaFrame.Start, Err: fmt.Errorf("decode metadata: %w", err)}
	}
	if listener != nil && !listener.OnMetadata(graph) {
		listener.OnChunkEnd(true)
		return &ScanResult{Header: header, Graph: graph, Aborted: true}, nil
	}

	// Phase 3: constant pools. Checkpoint records run from the constant-pool
	// offset up to (but not including) the metadata record, back to back.
	pools := constpool.NewStore()
	vreader := value.NewReader(graph, pools)

	cpStart := header.AbsConstantPoolOffset()
	cpEnd := header.AbsMetadataOffset()
	if cpEnd < cpStart {
		cpEnd = header.End()
	}
	if err := src.Seek(cpStart); err != nil {
		return (&ScanResult{Header: header, Graph: graph}).abort(listener, policy, ScanMalformedInput, cpStart, fmt.Errorf("seek to constant pool section: %w", err))
	}
	for src.Position() < cpEnd {
		cpFrame, err := readRecordFrame(src, cpEnd)
		if err != nil {
			return (&ScanResult{Header: header, Graph: graph}).abort(listener, policy, ScanMalformedInput, src.Position(), fmt.Errorf("read checkpoint record: %w", err))
		}
		if cpFrame.TypeID != ReservedCheckpointTypeID {
			return (&ScanResult{Header: header, Graph: graph}).abort(listener, policy, ScanMalformedInput, cpFrame.Start, fmt.Errorf("constant pool section contains non-checkpoint record (typeId %d) at offset %d", cpFrame.TypeID, cpFrame.Start))
		}
		if err := pools.DecodeCheckpoint(graph, vreader, cpFrame.Payload); err != nil {
			return (&ScanResult{Header: header, Graph: graph}).abort(listener, policy, ScanMalformedInput, cpFrame.Start, fmt.Errorf("decode checkpoint at offset %d: %w", cpFrame.Start, err))
		}
		if err := src.Seek(cpFrame.End); err != nil {
			return (&ScanResult{Header: header, Graph: graph}).abort(listener, policy, ScanMalformedInput, cpFrame.End, err)
		}
	}
	if err := pools.Finalize(0); err != nil {
		return (&ScanResult{Header: header, Graph: graph}).abort(listener, policy, ScanCorruptPool, cpEnd, fmt.Errorf("finalize constant pools: %w", err))
	}
	if listener != nil && !listener.OnCheckpoint() {
		listener.OnChunkEnd(true)
		return &ScanResult{Header: header, Graph: graph, Aborted: true}, nil
	}

	if disp != nil {
		if err := disp.BindChunk(header, graph, vreader); err != nil {
			return nil, fmt.Errorf("chunk: bind dispatcher: %w", err)
		}
	}

	// Phase 4: events.
	result := &ScanResult{Header: header, Graph: graph}
	if err := src.Seek(header.AbsEventsStart()); err != nil {
		return result.abort(listener, policy, ScanMalformedInput, header.AbsEventsStart(), fmt.Errorf("seek to events: %w", err))
	}

	for src.Position() < header.End() {
		eventStart := src.Position()
		frame, frameErr := readRecordFrame(src, header.End())
		if frameErr != nil {
			return result.abort(listener, policy, ScanMalformedInput, eventStart, fmt.Errorf("read event frame: %w", frameErr))
		}

		// Skip any metadata/checkpoint records interleaved in the event
		// stream (a chunk may carry more than one of either); they do not
		// count as dispatched events.
		if frame.TypeID == ReservedMetadataTypeID || frame.TypeID == ReservedCheckpointTypeID {
			if err := src.Seek(frame.End); err != nil {
				return result.abort(listener, policy, ScanMalformedInput, frame.End, err)
			}
			continue
		}

		if listener != nil && !listener.OnEvent(frame.TypeID, frame.Start, int(frame.End-frame.Start), len(frame.Payload)) {
			if err := src.Seek(frame.End); err != nil {
				return result.abort(listener, policy, ScanMalformedInput, frame.End, err)
			}
			result.Aborted = true
			break
		}

		if disp != nil {
			if dispErr := disp.Dispatch(frame.TypeID, frame.Payload); dispErr != nil {
				result.Skipped = append(result.Skipped, SkippedEvent{TypeID: frame.TypeID, Offset: frame.Start, Err: dispErr})

				effectivePolicy := policy
				// A handler failure (as opposed to a decode failure) always
				// aborts the run, regardless of on_decoder_error (§7).
				if fatal, ok := dispErr.(interface{ FatalToRun() bool }); ok && fatal.FatalToRun() {
					effectivePolicy = AbortRun
				}
				switch effectivePolicy {
				case AbortChunk:
					result.Aborted = true
					if err := src.Seek(frame.End); err != nil {
						return result.abort(listener, policy, ScanMalformedInput, frame.End, err)
					}
					goto chunkDone
				case AbortRun:
					result.Aborted = true
					result.RunAbort = true
					goto chunkDone
				default: // SkipEvent
				}
			}
		}

		if err := src.Seek(frame.End); err != nil {
			return result.abort(listener, policy, ScanMalformedInput, frame.End, err)
		}

		if disp != nil && disp.Aborted() {
			result.Aborted = true
			result.RunAbort = true
			break
		}
	}

chunkDone:
	if listener != nil {
		listener.OnChunkEnd(result.Aborted)
	}
	return result, nil
}
