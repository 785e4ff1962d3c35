package jfrstream

import (
	"sync/atomic"
	"time"

	"github.com/arvindraghu/jfrstream/internal/jfr/cache"
)

// Logger is the optional diagnostic sink a Context may be given; nil means
// silent. Satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// ContextOptions configures a new Context.
type ContextOptions struct {
	Config Config
	Logger Logger
}

// Context is a parsing context (§5): it owns the fingerprint-keyed decoder
// cache shared by every Parser opened from it, across every run. Safe for
// concurrent use by multiple Parsers on separate goroutines; a single
// Parser's own Run() is not itself concurrency-safe with a second Run() on
// the same Parser.
type Context struct {
	config Config
	logger Logger
	cache  *cache.Store

	uptimeNanos atomic.Int64
}

// NewContext creates a parsing context with the given options.
func NewContext(opts ContextOptions) *Context {
	return &Context{
		config: opts.Config.withDefaults(),
		logger: opts.Logger,
		cache:  cache.NewStore(),
	}
}

// Uptime returns the cumulative wall-clock time spent inside Run() across
// every Parser opened from this Context. Monotonically non-decreasing: it
// only ever accumulates time.Since deltas measured around each run, never
// compares stored wall-clock reads directly.
func (c *Context) Uptime() time.Duration {
	return time.Duration(c.uptimeNanos.Load())
}

func (c *Context) addUptime(d time.Duration) {
	if d > 0 {
		c.uptimeNanos.Add(int64(d))
	}
}

// DecoderCacheSize reports the number of distinct (fingerprint, schema-hash)
// decoder sets currently cached in this context.
func (c *Context) DecoderCacheSize() int {
	return c.cache.Len()
}
