package jfrstream

import (
	"sync"

	"github.com/arvindraghu/jfrstream/internal/jfr/dispatch"
	"github.com/arvindraghu/jfrstream/internal/jfr/typed"
	"github.com/arvindraghu/jfrstream/internal/jfr/untyped"
)

// Control is the callback-side capability passed to every handler
// invocation: cooperative abort plus the current chunk's timing anchor.
type Control = dispatch.Control

// TypedHandler receives one typed-projected record per matching event.
type TypedHandler = dispatch.TypedHandler

// UntypedHandler receives one untyped field-name -> value record per event,
// of any metadata type in the recording.
type UntypedHandler = dispatch.UntypedHandler

// Schema declares the fields a typed handler wants projected out of a
// metadata class (§4.G).
type Schema = typed.Schema

// Record is a typed, schema-bound decoded event (§4.G).
type Record = typed.Record

// UntypedRecord is an undeclared field-name -> value record decoded against
// whatever metadata class the current event carries (§4.H).
type UntypedRecord = untyped.Record

// Kind identifies a typed accessor's declared shape, for use with
// Schema.Field/RawField/NestedField.
type Kind = typed.Kind

const (
	KindBoolean  = typed.KindBoolean
	KindByte     = typed.KindByte
	KindShort    = typed.KindShort
	KindChar     = typed.KindChar
	KindInt      = typed.KindInt
	KindLong     = typed.KindLong
	KindFloat    = typed.KindFloat
	KindDouble   = typed.KindDouble
	KindString   = typed.KindString
	KindCompound = typed.KindCompound
)

// NewSchema begins declaring a typed schema for the named metadata class.
func NewSchema(className string) *Schema { return typed.NewSchema(className) }

// Registration is the handle returned by Parser.RegisterTyped/RegisterUntyped;
// Detach removes it from the parser (§4.I).
type Registration struct {
	parser *Parser
	inner  *dispatch.Registration
}

// Detach removes this registration. A subsequent Run on the same parser will
// not deliver to it. Safe to call more than once.
func (r *Registration) Detach() error {
	if r.parser.isClosed() {
		return newError(ResourceClosed, 0, 0, 0, "detach after close", nil)
	}
	r.parser.table.Detach(r.inner)
	return nil
}

// Parser parses one recording file against the handlers registered on it.
// Create one via Context.OpenTyped or Context.OpenUntyped. A Parser's
// registration table survives across multiple Run() calls; its per-run
// dispatch state (decoders bound to a chunk, pooled records, abort control)
// does not (§5).
type Parser struct {
	ctx  *Context
	path string

	mu     sync.Mutex
	closed bool

	table   *dispatch.Table
	skipped []*Error
}

func (ctx *Context) open(path string) (*Parser, error) {
	return &Parser{ctx: ctx, path: path, table: dispatch.NewTable()}, nil
}

// OpenTyped opens a recording for typed-path dispatch (RegisterTyped).
func (ctx *Context) OpenTyped(path string) (*Parser, error) { return ctx.open(path) }

// OpenUntyped opens a recording for untyped-path dispatch (RegisterUntyped).
func (ctx *Context) OpenUntyped(path string) (*Parser, error) { return ctx.open(path) }

// RegisterTyped registers a schema+handler pair: events of that schema's
// class are decoded per the schema's declared accessors and delivered to
// handler on every subsequent Run().
func (p *Parser) RegisterTyped(schema *Schema, handler TypedHandler) (*Registration, error) {
	if p.isClosed() {
		return nil, newError(ResourceClosed, 0, 0, 0, "register after close", nil)
	}
	reg := p.table.RegisterTyped(schema, handler)
	return &Registration{parser: p, inner: reg}, nil
}

// RegisterUntyped installs the untyped handler, replacing any previously
// registered one (§4.I: at most one untyped handler per parser).
func (p *Parser) RegisterUntyped(handler UntypedHandler) (*Registration, error) {
	if p.isClosed() {
		return nil, newError(ResourceClosed, 0, 0, 0, "register after close", nil)
	}
	reg := p.table.RegisterUntyped(handler)
	return &Registration{parser: p, inner: reg}, nil
}

func (p *Parser) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Skipped returns every non-fatal skip recorded during the most recent Run:
// typed-schema mismatches and events whose decode or handler failed under a
// recoverable policy (§7: "no silent data loss; every skipped event is
// counted and reported"). Replaced wholesale by the next Run, not
// accumulated across runs.
func (p *Parser) Skipped() []*Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Error, len(p.skipped))
	copy(out, p.skipped)
	return out
}

func (p *Parser) resetSkipped() {
	p.mu.Lock()
	p.skipped = nil
	p.mu.Unlock()
}

func (p *Parser) addSkipped(errs ...*Error) {
	if len(errs) == 0 {
		return
	}
	p.mu.Lock()
	p.skipped = append(p.skipped, errs...)
	p.mu.Unlock()
}

// Close releases the parser. Idempotent; a Parser may not Run after Close.
func (p *Parser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
