package dispatch

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/cache"
	"github.com/arvindraghu/jfrstream/internal/jfr/chunk"
	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/typed"
	"github.com/arvindraghu/jfrstream/internal/jfr/untyped"
	"github.com/arvindraghu/jfrstream/internal/jfr/value"
)

// HandlerFailed wraps a user handler's error or recovered panic. It always
// aborts the run, regardless of the configured on_decoder_error policy (§7;
// §9 resolved Open Question: fatal-to-run uniformly).
type HandlerFailed struct {
	TypeID int64
	Cause  error
}

func (e *HandlerFailed) Error() string {
	return fmt.Sprintf("dispatch: handler failed for typeId %d: %v", e.TypeID, e.Cause)
}
func (e *HandlerFailed) Unwrap() error   { return e.Cause }
func (e *HandlerFailed) FatalToRun() bool { return true }

// Logger is the optional coarse diagnostic sink (nil means silent).
type Logger interface {
	Printf(format string, args ...any)
}

type typedEntry struct {
	decoder *typed.Decoder
	handler TypedHandler
}

// Dispatcher drives one run's event delivery (§4.I): implements
// chunk.Dispatcher, resolving each event's typeId to a cached typed decoder
// and/or the shared untyped decoder, then invoking the registered
// handler(s). One Dispatcher is constructed per Run(); its Control and
// abort state do not survive across runs, unlike the decoder cache and
// registration table it is given.
type Dispatcher struct {
	table        *Table
	decoderCache *cache.Store
	reuse        bool
	mode         untyped.Mode
	logger       Logger

	control *Control
	pool    *typed.RecordPool

	graph  *metadata.Graph
	reader *value.Reader

	typedByTypeID map[int64]*typedEntry
	untypedReg    *untypedReg
	untypedByType map[int64]*untyped.Decoder

	chunkDone bool

	schemaMismatches []error
}

// New creates a per-run dispatcher bound to a registration table and the
// parsing context's shared fingerprint-keyed decoder cache.
func New(table *Table, decoderCache *cache.Store, reuse bool, mode untyped.Mode, logger Logger) *Dispatcher {
	d := &Dispatcher{
		table:        table,
		decoderCache: decoderCache,
		reuse:        reuse,
		mode:         mode,
		logger:       logger,
		control:      &Control{},
	}
	if reuse {
		d.pool = typed.NewRecordPool()
	}
	return d
}

// Control returns this run's control object (shared by every handler
// invocation during the run).
func (d *Dispatcher) Control() *Control { return d.control }

// BindChunk implements chunk.Dispatcher: resolves every registered typed
// schema against this chunk's graph, installing (or reusing, by
// fingerprint) the decoder set, and resets the per-chunk untyped decoder
// cache.
func (d *Dispatcher) BindChunk(h *chunk.Header, g *metadata.Graph, r *value.Reader) error {
	d.graph = g
	d.reader = r
	d.chunkDone = false
	d.control.chunk = ChunkInfo{
		StartTimeNanos: h.StartTimeNanos,
		DurationNanos:  h.DurationNanos,
		StartTicks:     h.StartTicks,
		TicksPerSecond: h.TicksPerSecond,
	}

	typedRegs, untypedReg := d.table.snapshot()
	d.untypedReg = untypedReg
	d.untypedByType = make(map[int64]*untyped.Decoder)

	d.typedByTypeID = make(map[int64]*typedEntry, len(typedRegs))
	if len(typedRegs) == 0 {
		return nil
	}

	rootNames := make([]string, 0, len(typedRegs))
	for _, reg := range typedRegs {
		// A class absent from this chunk is reported by buildDecoderSet as a
		// schema mismatch; it has no structure to fingerprint.
		if _, ok := g.ByName(reg.schema.ClassName); ok {
			rootNames = append(rootNames, reg.schema.ClassName)
		}
	}

	fp, err := g.Fingerprint(rootNames)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	key := cache.Key{Fingerprint: fp, SchemaHash: hashTypedRegs(typedRegs)}

	entry, err := d.decoderCache.GetOrInstall(key, func() (any, error) {
		return buildDecoderSet(g, typedRegs), nil
	})
	if err != nil {
		return fmt.Errorf("dispatch: install decoder set: %w", err)
	}
	ds := entry.(*DecoderSet)

	if len(ds.Errors) > 0 {
		d.schemaMismatches = append(d.schemaMismatches, ds.Errors...)
		if d.logger != nil {
			for _, e := range ds.Errors {
				d.logger.Printf("typed schema mismatch: %v", e)
			}
		}
	}

	for _, reg := range typedRegs {
		dec, ok := ds.ByClassName[reg.schema.ClassName]
		if !ok {
			continue // reported via Errors above; no events of T dispatched this chunk
		}
		class, ok := g.ByName(reg.schema.ClassName)
		if !ok {
			continue
		}
		d.typedByTypeID[class.TypeID] = &typedEntry{decoder: dec, handler: reg.handler}
	}
	return nil
}

// Dispatch implements chunk.Dispatcher: decode and deliver one event to
// every matching registered handler. A handler panic is recovered and
// reported as HandlerFailed, matching a returned handler error.
func (d *Dispatcher) Dispatch(typeID int64, payload []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HandlerFailed{TypeID: typeID, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()

	if entry, ok := d.typedByTypeID[typeID]; ok {
		rec, _, decErr := entry.decoder.Decode(d.reader, payload, d.pool)
		if decErr != nil {
			return fmt.Errorf("dispatch: decode typeId %d: %w", typeID, decErr)
		}
		hErr := entry.handler(rec, d.control)
		if d.pool != nil {
			d.pool.Put(rec)
		}
		if hErr != nil {
			return &HandlerFailed{TypeID: typeID, Cause: hErr}
		}
	}

	if d.untypedReg != nil {
		dec, ok := d.untypedByType[typeID]
		if !ok {
			class, found := d.graph.ByTypeID(typeID)
			if !found {
				return fmt.Errorf("dispatch: unknown typeId %d", typeID)
			}
			built, bindErr := untyped.Bind(d.graph, class.Name, d.mode)
			if bindErr != nil {
				return fmt.Errorf("dispatch: %w", bindErr)
			}
			dec = built
			d.untypedByType[typeID] = dec
		}

		rec, _, decErr := dec.Decode(d.reader, payload, &d.chunkDone)
		if decErr != nil {
			return fmt.Errorf("dispatch: decode typeId %d: %w", typeID, decErr)
		}
		if hErr := d.untypedReg.handler(rec, d.control); hErr != nil {
			return &HandlerFailed{TypeID: typeID, Cause: hErr}
		}
	}

	return nil
}

// Aborted implements chunk.Dispatcher.
func (d *Dispatcher) Aborted() bool { return d.control.Aborted() }

// TakeSchemaMismatches drains and returns every typed-schema mismatch
// accumulated via BindChunk since the last call. Per §4.G/§7 these are
// reported, not fatal: the affected type simply receives no events in the
// chunk(s) where its schema did not bind.
func (d *Dispatcher) TakeSchemaMismatches() []error {
	if len(d.schemaMismatches) == 0 {
		return nil
	}
	out := d.schemaMismatches
	d.schemaMismatches = nil
	return out
}

// ChunkEnded invalidates any lazy/sparse untyped thunks created while
// decoding the just-finished chunk (§9 "thunks must not outlive the
// chunk"). Called from the scanner's onChunkEnd notification.
func (d *Dispatcher) ChunkEnded() {
	d.chunkDone = true
}
