// Package dispatch implements the event dispatcher (§4.I): per event, it
// finds the decoder for the metadata type, invokes the registered handler,
// and respects cooperative abort.
package dispatch

import "sync/atomic"

// ChunkInfo is the timing/epoch anchor of the chunk currently being
// scanned, exposed to handlers via Control.ChunkInfo (§6).
type ChunkInfo struct {
	StartTimeNanos int64
	DurationNanos  int64
	StartTicks     int64
	TicksPerSecond int64
}

// Control is the callback-side capability passed to every handler
// invocation: cooperative abort plus the current chunk's timing anchor
// (§4.I, §5 "Control.abort() is cooperative").
type Control struct {
	aborted atomic.Bool
	chunk   ChunkInfo
}

// Abort requests that no further events be delivered for the remainder of
// the run. Takes effect once the handler that called it returns; chunk-end
// notification still fires so resources release (§5).
func (c *Control) Abort() { c.aborted.Store(true) }

// Aborted reports whether Abort has been called during this run.
func (c *Control) Aborted() bool { return c.aborted.Load() }

// ChunkInfo returns the timing/epoch anchor of the chunk currently being
// scanned.
func (c *Control) ChunkInfo() ChunkInfo { return c.chunk }
