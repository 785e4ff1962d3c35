package jfrstream

import (
	"errors"
	"time"

	"github.com/arvindraghu/jfrstream/internal/jfr/bytesource"
	"github.com/arvindraghu/jfrstream/internal/jfr/chunk"
	"github.com/arvindraghu/jfrstream/internal/jfr/dispatch"
)

// Run parses the recording end-to-end on the calling goroutine in file
// order, delivering matching events to every registered handler, until EOF,
// a run-fatal error, or a handler-initiated Control.Abort (§5: a run is
// single-threaded and cooperative). A subsequent Run on the same Parser may
// see a different registration set and reuses the Context's decoder cache.
func (p *Parser) Run() error {
	if p.isClosed() {
		return newError(ResourceClosed, 0, 0, 0, "run after close", nil)
	}

	start := time.Now()
	defer func() { p.ctx.addUptime(time.Since(start)) }()
	p.resetSkipped()

	src, err := bytesource.Open(p.path, p.ctx.config.SpliceSize)
	if err != nil {
		return newError(MalformedInput, 0, 0, 0, "open recording", err)
	}
	defer src.Close()

	disp := dispatch.New(
		p.table,
		p.ctx.cache,
		p.ctx.config.TypedRecordReuse == Pooled,
		p.ctx.config.UntypedMode.toInternal(),
		p.ctx.logger,
	)
	policy := p.ctx.config.OnDecoderError.toInternal()

	lst := &runListener{disp: disp, logger: p.ctx.logger}
	lst.OnRecordingStart()

	chunkIndex := 0
	offset := int64(0)
	for offset < src.Size() {
		lst.chunkIndex = chunkIndex

		result, scanErr := chunk.ScanChunk(src, offset, lst, disp, policy)
		if scanErr != nil {
			errOffset := offset
			var se *chunk.ScanError
			if errors.As(scanErr, &se) {
				errOffset = se.Offset
			}
			return newError(classifyScanErr(scanErr), chunkIndex, errOffset, 0, "scan chunk", scanErr)
		}
		if result.Header == nil {
			break
		}

		for _, mm := range disp.TakeSchemaMismatches() {
			p.addSkipped(newError(SchemaMismatch, chunkIndex, result.Header.Offset, 0, "typed schema mismatch", mm))
		}
		for _, se := range result.Skipped {
			p.addSkipped(newError(classifyScanErr(se.Err), chunkIndex, se.Offset, se.TypeID, "skipped event", se.Err))
		}

		if result.RunAbort {
			if cause := lastFatalCause(result.Skipped); cause != nil {
				return newError(classifyScanErr(cause.Err), chunkIndex, cause.Offset, cause.TypeID, "aborted run", cause.Err)
			}
			break
		}

		offset = result.Header.End()
		chunkIndex++
	}

	lst.OnRecordingEnd()
	return nil
}

func lastFatalCause(skipped []chunk.SkippedEvent) *chunk.SkippedEvent {
	if len(skipped) == 0 {
		return nil
	}
	return &skipped[len(skipped)-1]
}

// classifyScanErr maps a chunk-scan or handler failure onto its public
// ErrorKind (§7): a *chunk.ScanError carries its own propagation class, a
// *dispatch.HandlerFailed is always HandlerFailed, and anything else
// (an unrecognized internal failure) defaults to MalformedInput.
func classifyScanErr(err error) ErrorKind {
	var se *chunk.ScanError
	if errors.As(err, &se) {
		switch se.Kind {
		case chunk.ScanCorruptMetadata:
			return CorruptMetadata
		case chunk.ScanCorruptPool:
			return CorruptPool
		default:
			return MalformedInput
		}
	}
	var hf *dispatch.HandlerFailed
	if errors.As(err, &hf) {
		return HandlerFailed
	}
	return MalformedInput
}
