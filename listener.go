package jfrstream

import (
	"github.com/arvindraghu/jfrstream/internal/jfr/chunk"
	"github.com/arvindraghu/jfrstream/internal/jfr/dispatch"
	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
)

// runListener bridges the chunk scanner's lifecycle hooks (§4.E) to the
// run's dispatcher and optional logger. It never ends a chunk early on its
// own; OnEvent/OnMetadata/OnCheckpoint/OnChunkStart always return true.
type runListener struct {
	disp       *dispatch.Dispatcher
	logger     Logger
	chunkIndex int
}

func (l *runListener) OnRecordingStart() {
	if l.logger != nil {
		l.logger.Printf("jfrstream: recording start")
	}
}

func (l *runListener) OnChunkStart(h *chunk.Header) bool {
	if l.logger != nil {
		l.logger.Printf("jfrstream: chunk %d start at offset %d, size %d", l.chunkIndex, h.Offset, h.Size)
	}
	return true
}

func (l *runListener) OnMetadata(g *metadata.Graph) bool { return true }

func (l *runListener) OnCheckpoint() bool { return true }

func (l *runListener) OnEvent(typeID int64, startPos int64, rawSize int, payloadSize int) bool {
	return true
}

func (l *runListener) OnChunkEnd(skipped bool) {
	l.disp.ChunkEnded()
	if l.logger != nil {
		l.logger.Printf("jfrstream: chunk %d end, skipped=%t", l.chunkIndex, skipped)
	}
}

func (l *runListener) OnRecordingEnd() {
	if l.logger != nil {
		l.logger.Printf("jfrstream: recording end")
	}
}
