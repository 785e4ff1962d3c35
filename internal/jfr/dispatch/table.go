package dispatch

import (
	"sync"

	"github.com/arvindraghu/jfrstream/internal/jfr/typed"
	"github.com/arvindraghu/jfrstream/internal/jfr/untyped"
)

// TypedHandler receives one typed-projected record per matching event.
type TypedHandler func(rec *typed.Record, ctl *Control) error

// UntypedHandler receives one untyped field-name -> value record per event,
// of any metadata type.
type UntypedHandler func(rec *untyped.Record, ctl *Control) error

type registrationKind int

const (
	regTyped registrationKind = iota
	regUntyped
)

// Registration is the opaque handle returned by registering a handler;
// Detach(table) removes it (§3 "Lifecycles", §4.I).
type Registration struct {
	id   int
	kind registrationKind
}

type typedReg struct {
	id      int
	schema  *typed.Schema
	handler TypedHandler
}

type untypedReg struct {
	id      int
	handler UntypedHandler
}

// Table holds the handler registrations for one Parser: zero or more typed
// schema+handler pairs, plus at most one untyped handler (§4.I). A Table
// outlives any single Run(); "a subsequent run may be executed with a
// different set of registrations on the same parsing context" (§4.I).
type Table struct {
	mu      sync.Mutex
	nextID  int
	typed   []*typedReg
	untyped *untypedReg
}

// NewTable creates an empty registration table.
func NewTable() *Table {
	return &Table{}
}

// RegisterTyped adds a typed schema+handler pair.
func (t *Table) RegisterTyped(schema *typed.Schema, handler TypedHandler) *Registration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.typed = append(t.typed, &typedReg{id: t.nextID, schema: schema, handler: handler})
	return &Registration{id: t.nextID, kind: regTyped}
}

// RegisterUntyped installs the untyped handler, replacing any prior one.
func (t *Table) RegisterUntyped(handler UntypedHandler) *Registration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.untyped = &untypedReg{id: t.nextID, handler: handler}
	return &Registration{id: t.nextID, kind: regUntyped}
}

// Detach removes a registration. A no-op if already detached.
func (t *Table) Detach(reg *Registration) {
	if reg == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	switch reg.kind {
	case regTyped:
		out := t.typed[:0]
		for _, r := range t.typed {
			if r.id != reg.id {
				out = append(out, r)
			}
		}
		t.typed = out
	case regUntyped:
		if t.untyped != nil && t.untyped.id == reg.id {
			t.untyped = nil
		}
	}
}

func (t *Table) snapshot() ([]*typedReg, *untypedReg) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*typedReg(nil), t.typed...), t.untyped
}
