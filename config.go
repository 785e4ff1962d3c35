package jfrstream

import (
	"github.com/arvindraghu/jfrstream/internal/jfr/bytesource"
	"github.com/arvindraghu/jfrstream/internal/jfr/chunk"
	"github.com/arvindraghu/jfrstream/internal/jfr/untyped"
)

// UntypedMode selects the §4.H materialization strategy for the untyped
// path.
type UntypedMode int

const (
	// UntypedLazy stores compound/array fields as thunks, resolved on
	// first access (default; the zero value of Config.UntypedMode).
	UntypedLazy UntypedMode = iota
	// UntypedEager fully decodes every field at event time.
	UntypedEager
	// UntypedSparse behaves like UntypedLazy but thunks each array
	// element individually.
	UntypedSparse
)

func (m UntypedMode) toInternal() untyped.Mode {
	switch m {
	case UntypedEager:
		return untyped.Eager
	case UntypedSparse:
		return untyped.Sparse
	default:
		return untyped.Lazy
	}
}

// DecoderErrorPolicy selects the §4.E/§7 recovery policy applied when an
// event's decode (not a handler) fails.
type DecoderErrorPolicy int

const (
	// SkipEvent skips to eventStart+size and reports the error (default).
	SkipEvent DecoderErrorPolicy = iota
	// AbortChunk stops the current chunk and moves to the next one.
	AbortChunk
	// AbortRun stops the entire parsing run.
	AbortRun
)

func (p DecoderErrorPolicy) toInternal() chunk.ErrorPolicy {
	switch p {
	case AbortChunk:
		return chunk.AbortChunk
	case AbortRun:
		return chunk.AbortRun
	default:
		return chunk.SkipEvent
	}
}

// RecordReuse selects whether typed records are recycled between events.
type RecordReuse int

const (
	// Pooled reuses records from a per-run freelist (default).
	Pooled RecordReuse = iota
	// Fresh allocates a new record for every event.
	Fresh
)

// Config is the configuration recognized by the core (§6).
type Config struct {
	// SpliceSize bounds the byte source's mapped-segment size; affects the
	// byte source only. Zero means bytesource.DefaultSpliceSize.
	SpliceSize int64
	// UntypedMode selects the untyped path's materialization strategy.
	UntypedMode UntypedMode
	// OnDecoderError selects the recovery policy for a failing event decode.
	OnDecoderError DecoderErrorPolicy
	// TypedRecordReuse selects whether typed records are pooled or fresh.
	TypedRecordReuse RecordReuse
}

func (c Config) withDefaults() Config {
	if c.SpliceSize <= 0 {
		c.SpliceSize = bytesource.DefaultSpliceSize
	}
	return c
}
